// Package tui renders the read-only operator console served over SSH.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"riskwatch/internal/domain"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	incidentLimit = 50
	loadTimeout   = 5 * time.Second
)

type IncidentSource interface {
	ListIncidents(ctx context.Context, caller domain.Caller, accountID *int64, limit int) ([]domain.Incident, error)
}

type AccountSource interface {
	ListAccounts(ctx context.Context, caller domain.Caller) ([]domain.Account, error)
}

// Services is everything one console session reads from.
type Services struct {
	Incidents IncidentSource
	Accounts  AccountSource
	Caller    domain.Caller
	Username  string
}

type tab int

const (
	tabIncidents tab = iota
	tabAccounts
	tabCount
)

func (t tab) title() string {
	if t == tabAccounts {
		return "Accounts"
	}
	return "Incidents"
}

type loadedMsg struct {
	incidents []domain.Incident
	accounts  []domain.Account
	at        time.Time
	err       error
}

type AppModel struct {
	svc       Services
	tab       tab
	viewport  viewport.Model
	ready     bool
	width     int
	height    int
	loading   bool
	incidents []domain.Incident
	accounts  []domain.Account
	loadedAt  time.Time
	err       error
}

func NewAppModel(svc Services) *AppModel {
	return &AppModel{svc: svc, loading: true}
}

// SetSize sizes the model before the first WindowSizeMsg arrives.
func (m *AppModel) SetSize(width, height int) {
	m.width, m.height = width, height
	vpHeight := height - 2
	if vpHeight < 1 {
		vpHeight = 1
	}
	if !m.ready {
		m.viewport = viewport.New(width, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = width
		m.viewport.Height = vpHeight
	}
	m.viewport.SetContent(m.renderContent())
}

func (m *AppModel) Init() tea.Cmd {
	return m.load()
}

func (m *AppModel) load() tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()

		incidents, err := svc.Incidents.ListIncidents(ctx, svc.Caller, nil, incidentLimit)
		if err != nil {
			return loadedMsg{err: fmt.Errorf("load incidents: %w", err)}
		}
		accounts, err := svc.Accounts.ListAccounts(ctx, svc.Caller)
		if err != nil {
			return loadedMsg{err: fmt.Errorf("load accounts: %w", err)}
		}
		return loadedMsg{incidents: incidents, accounts: accounts, at: time.Now()}
	}
}

func (m *AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "tab":
			m.tab = (m.tab + 1) % tabCount
			m.refreshView()
			return m, nil
		case "1":
			m.tab = tabIncidents
			m.refreshView()
			return m, nil
		case "2":
			m.tab = tabAccounts
			m.refreshView()
			return m, nil
		case "r":
			m.loading = true
			return m, m.load()
		}
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
		return m, nil
	case loadedMsg:
		m.loading = false
		m.err = msg.err
		if msg.err == nil {
			m.incidents = msg.incidents
			m.accounts = msg.accounts
			m.loadedAt = msg.at
		}
		m.refreshView()
		return m, nil
	}

	var cmd tea.Cmd
	if m.ready {
		m.viewport, cmd = m.viewport.Update(msg)
	}
	return m, cmd
}

func (m *AppModel) refreshView() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderContent())
	m.viewport.GotoTop()
}

func (m *AppModel) View() string {
	if !m.ready {
		return "Loading..."
	}

	var tabs []string
	for t := tab(0); t < tabCount; t++ {
		label := fmt.Sprintf(" %d %s ", t+1, t.title())
		if t == m.tab {
			tabs = append(tabs, activeTabStyle.Render(label))
		} else {
			tabs = append(tabs, tabStyle.Render(label))
		}
	}
	status := ""
	switch {
	case m.loading:
		status = "loading..."
	case !m.loadedAt.IsZero():
		status = "updated " + m.loadedAt.Format("15:04:05")
	}
	header := headerStyle.Render(padOrTrunc(
		" riskwatch  "+m.svc.Username+"  "+strings.Join(tabs, "")+"  "+status, m.width))

	footer := footerStyle.Render(padOrTrunc(" q quit  tab/1/2 switch  r refresh  pgup/pgdn scroll", m.width))
	return header + "\n" + m.viewport.View() + "\n" + footer
}

func (m *AppModel) renderContent() string {
	if m.err != nil {
		return errorStyle.Render("error: " + m.err.Error())
	}
	if m.tab == tabAccounts {
		return renderAccounts(m.accounts)
	}
	return renderIncidents(m.incidents)
}

func padOrTrunc(s string, width int) string {
	if width <= 0 {
		return s
	}
	w := lipgloss.Width(s)
	if w >= width {
		return s
	}
	return s + strings.Repeat(" ", width-w)
}
