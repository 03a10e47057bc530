package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"riskwatch/internal/domain"

	tea "github.com/charmbracelet/bubbletea"
)

type stubSources struct {
	incidents []domain.Incident
	accounts  []domain.Account
	err       error
	caller    domain.Caller
	limit     int
}

func (s *stubSources) ListIncidents(_ context.Context, caller domain.Caller, _ *int64, limit int) ([]domain.Incident, error) {
	s.caller, s.limit = caller, limit
	return s.incidents, s.err
}

func (s *stubSources) ListAccounts(_ context.Context, _ domain.Caller) ([]domain.Account, error) {
	return s.accounts, nil
}

func newLoadedModel(t *testing.T, src *stubSources) *AppModel {
	t.Helper()
	m := NewAppModel(Services{Incidents: src, Accounts: src, Caller: domain.Caller{IsAdmin: true}, Username: "ops"})
	m.SetSize(120, 30)
	msg := m.Init()()
	m.Update(msg)
	return m
}

func TestAppModel_ShowsIncidentsThenAccounts(t *testing.T) {
	src := &stubSources{
		incidents: []domain.Incident{{
			ID: 7, AccountLogin: 5001, RuleName: "min hold", RuleSeverity: domain.SeverityHard,
			Count: 2, Fired: true, CreatedAt: time.Date(2024, 3, 4, 5, 6, 0, 0, time.UTC),
		}},
		accounts: []domain.Account{{ID: 1, Login: 5001, OwnerID: 3, Status: domain.StatusEnabled, TradingStatus: domain.StatusDisabled}},
	}
	m := newLoadedModel(t, src)

	if !src.caller.IsAdmin || src.limit != incidentLimit {
		t.Fatalf("unexpected query: caller=%+v limit=%d", src.caller, src.limit)
	}
	view := m.View()
	for _, want := range []string{"min hold", "5001", "pending", "Incidents"} {
		if !strings.Contains(view, want) {
			t.Fatalf("incidents view missing %q:\n%s", want, view)
		}
	}

	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	view = m.View()
	if !strings.Contains(view, "disable") || !strings.Contains(view, "LOGIN") {
		t.Fatalf("accounts view missing account row:\n%s", view)
	}

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("1")})
	if m.tab != tabIncidents {
		t.Fatalf("expected incidents tab, got %d", m.tab)
	}
}

func TestAppModel_DeletedRuleAndEmptyLists(t *testing.T) {
	src := &stubSources{incidents: []domain.Incident{{ID: 1, RiskRuleID: 44, Fired: true, IsExecuted: true}}}
	m := newLoadedModel(t, src)

	if view := m.View(); !strings.Contains(view, "rule 44 (deleted)") || !strings.Contains(view, "executed") {
		t.Fatalf("expected deleted rule placeholder:\n%s", view)
	}
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("2")})
	if view := m.View(); !strings.Contains(view, "No accounts registered.") {
		t.Fatalf("expected empty accounts message:\n%s", view)
	}
}

func TestAppModel_LoadError(t *testing.T) {
	src := &stubSources{err: errors.New("db down")}
	m := newLoadedModel(t, src)

	if view := m.View(); !strings.Contains(view, "db down") {
		t.Fatalf("expected error in view:\n%s", view)
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	if cmd == nil || !m.loading {
		t.Fatal("refresh should start a reload")
	}
}

func TestAppModel_Quit(t *testing.T) {
	m := NewAppModel(Services{})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("expected tea.QuitMsg")
	}
	if m.View() != "Loading..." {
		t.Fatal("unsized model should render the loading placeholder")
	}
}
