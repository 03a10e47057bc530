package tui

import (
	"fmt"
	"strings"

	"riskwatch/internal/domain"

	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("4"))
	footerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Background(lipgloss.Color("8"))
	tabStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	activeTabStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("6"))
	colHeaderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	hardStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	softStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	okStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

func severityStyle(s domain.Severity) lipgloss.Style {
	if s == domain.SeverityHard {
		return hardStyle
	}
	return softStyle
}

func statusStyle(s domain.Status) lipgloss.Style {
	if s == domain.StatusEnabled {
		return okStyle
	}
	return hardStyle
}

func renderIncidents(list []domain.Incident) string {
	if len(list) == 0 {
		return dimStyle.Render("No incidents recorded.")
	}
	var b strings.Builder
	b.WriteString(colHeaderStyle.Render(fmt.Sprintf("%-6s %-11s %-8s %-24s %-5s %5s  %s", "ID", "WHEN", "LOGIN", "RULE", "SEV", "COUNT", "STATE")))
	b.WriteString("\n")
	for _, inc := range list {
		rule := inc.RuleName
		if rule == "" {
			rule = fmt.Sprintf("rule %d (deleted)", inc.RiskRuleID)
		}
		if len(rule) > 24 {
			rule = rule[:23] + "~"
		}
		state := dimStyle.Render("not fired")
		switch {
		case inc.Fired && inc.IsExecuted:
			state = okStyle.Render("executed")
		case inc.Fired:
			state = hardStyle.Render("pending")
		}
		fmt.Fprintf(&b, "%-6d %-11s %-8d %-24s %s %5d  %s\n",
			inc.ID,
			inc.CreatedAt.Format("01-02 15:04"),
			inc.AccountLogin,
			rule,
			severityStyle(inc.RuleSeverity).Render(fmt.Sprintf("%-5s", inc.RuleSeverity)),
			inc.Count,
			state,
		)
	}
	return b.String()
}

func renderAccounts(list []domain.Account) string {
	if len(list) == 0 {
		return dimStyle.Render("No accounts registered.")
	}
	var b strings.Builder
	b.WriteString(colHeaderStyle.Render(fmt.Sprintf("%-6s %-10s %-6s %-8s %s", "ID", "LOGIN", "OWNER", "ACCOUNT", "TRADING")))
	b.WriteString("\n")
	for _, a := range list {
		fmt.Fprintf(&b, "%-6d %-10d %-6d %s %s\n",
			a.ID,
			a.Login,
			a.OwnerID,
			statusStyle(a.Status).Render(fmt.Sprintf("%-8s", a.Status)),
			statusStyle(a.TradingStatus).Render(string(a.TradingStatus)),
		)
	}
	return b.String()
}
