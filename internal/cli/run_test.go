package cli

import (
	"context"
	"fmt"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/formsync/internal/form"
	"github.com/roach88/formsync/internal/questionnaire"
)

const patientQuestionnaire = "../questionnaire/testdata/patient.yaml"

// queuePrompter answers prompts from fixed queues and records Info messages.
type queuePrompter struct {
	inputs   []string
	confirms []bool
	selects  []int
	infos    []string
}

func (p *queuePrompter) Input(_ context.Context, cfg questionnaire.InputConfig) (string, error) {
	if len(p.inputs) == 0 {
		return "", fmt.Errorf("unexpected input %q", cfg.Message)
	}
	s := p.inputs[0]
	p.inputs = p.inputs[1:]
	return s, nil
}

func (p *queuePrompter) Confirm(_ context.Context, cfg questionnaire.ConfirmConfig) (bool, error) {
	if len(p.confirms) == 0 {
		return false, fmt.Errorf("unexpected confirm %q", cfg.Message)
	}
	b := p.confirms[0]
	p.confirms = p.confirms[1:]
	return b, nil
}

func (p *queuePrompter) Select(_ context.Context, cfg questionnaire.SelectConfig) (int, error) {
	if len(p.selects) == 0 {
		return 0, fmt.Errorf("unexpected select %q", cfg.Message)
	}
	i := p.selects[0]
	p.selects = p.selects[1:]
	return i, nil
}

func (p *queuePrompter) Info(_ context.Context, msg string) error {
	p.infos = append(p.infos, msg)
	return nil
}

func patientAnswers() *queuePrompter {
	return &queuePrompter{
		inputs:   []string{"Durand", "61", "foie"},
		confirms: []bool{true},
		selects:  []int{1},
	}
}

func newTestRun(p *queuePrompter) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: testRootOptions(), Prompter: p})
}

func TestRun_CompletesAndSyncs(t *testing.T) {
	srv, url := newFormServer(t)
	p := patientAnswers()

	out, err := execute(t, newTestRun(p), "-q", patientQuestionnaire, "--db", tempDB(t), "--remote", url)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Questionnaire complete. Form form-1 is up to date.")
	assert.Contains(t, p.infos, "Matched Foie (C22).")

	assert.Equal(t, 1, srv.Repository().Len())
	rec, err := srv.Repository().Get("form-1")
	require.NoError(t, err)
	assert.Equal(t, 3, rec.Revision)
	assert.Equal(t, form.Values{
		"nom":            form.String("Durand"),
		"age":            form.Int(61),
		"organeboolForm": form.Bool(true),
		"organeForm":     form.String("C22"),
		"nom_organeForm": form.String("Foie"),
		"traitementForm": form.String("Chimiothérapie"),
	}, rec.Answers)
}

func TestRun_OfflineReportsUnsyncedPages(t *testing.T) {
	db := tempDB(t)

	out, err := execute(t, newTestRun(patientAnswers()), "-q", patientQuestionnaire, "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Nothing was synced yet.")
	assert.Contains(t, out, "Saved on this device only: identite, maladie, traitement")
	assert.Len(t, readSnapshot(t, db), 6)
}

func TestRun_ResumesWithStoredAnswersThenSyncs(t *testing.T) {
	srv, url := newFormServer(t)
	db := tempDB(t)

	_, err := execute(t, newTestRun(patientAnswers()), "-q", patientQuestionnaire, "--db", db)
	require.Error(t, err)

	// Second pass online: the stored answers are offered as defaults and
	// the first page creates the form with everything saved so far.
	_, err = execute(t, newTestRun(patientAnswers()), "-q", patientQuestionnaire, "--db", db, "--remote", url)
	require.NoError(t, err)
	assert.Equal(t, 1, srv.Repository().Len())
}

func TestRun_CatalogOverride(t *testing.T) {
	_, err := execute(t, newTestRun(patientAnswers()),
		"-q", patientQuestionnaire, "--db", tempDB(t), "--catalog", organesCatalog)
	// offline: completes with exit code 1
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestRun_UnknownCatalogOverride(t *testing.T) {
	_, err := execute(t, newTestRun(patientAnswers()),
		"-q", patientQuestionnaire, "--db", tempDB(t), "--catalog", "../harness/testdata/scenarios/storage_failure.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRun_MissingQuestionnaire(t *testing.T) {
	_, err := execute(t, newTestRun(patientAnswers()), "-q", "/nonexistent/q.yaml", "--db", tempDB(t))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load questionnaire")
}

func TestRun_InvalidIdleTimeout(t *testing.T) {
	_, err := execute(t, newTestRun(patientAnswers()),
		"-q", patientQuestionnaire, "--db", tempDB(t), "--idle-timeout", "0s")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "idle.timeout")
}

func TestRun_AbortedPrompt(t *testing.T) {
	p := &abortingPrompter{queuePrompter: patientAnswers()}

	cmd := newRunCommand(&RunOptions{RootOptions: testRootOptions(), Prompter: p})
	_, err := execute(t, cmd, "-q", patientQuestionnaire, "--db", tempDB(t))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "interrupted")
}

// abortingPrompter aborts at the first confirm.
type abortingPrompter struct {
	*queuePrompter
}

func (p *abortingPrompter) Confirm(context.Context, questionnaire.ConfirmConfig) (bool, error) {
	return false, questionnaire.ErrAborted
}
