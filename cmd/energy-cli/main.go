package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"energy-server/confs"
	"energy-server/entities"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginBottom(1)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("170")).
			Bold(true).
			PaddingLeft(2)

	normalStyle = lipgloss.NewStyle().
			PaddingLeft(4)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	inputStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86"))

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true)

	tabStyle = lipgloss.NewStyle().
			Padding(0, 2)

	activeTabStyle = tabStyle.
			Foreground(lipgloss.Color("205")).
			Underline(true)

	overrunStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))
)

type step int

const (
	stepEnteringEmail step = iota
	stepEnteringPassword
	stepLoggingIn
	stepDashboard
)

type tab int

const (
	tabDevices tab = iota
	tabBudgets
	tabAlerts
)

var tabNames = []string{"Devices", "Budgets", "Alerts"}

// api is the subset of apiClient the model drives.
type api interface {
	Login(ctx context.Context, email, password string) (string, error)
	Logout(ctx context.Context) error
	Devices(ctx context.Context) ([]entities.Device, error)
	SetDeviceStatus(ctx context.Context, deviceID string, status entities.DeviceStatus) (*entities.Device, error)
	TickDevice(ctx context.Context, deviceID string) (float64, error)
	Budgets(ctx context.Context) ([]entities.Budget, error)
	Alerts(ctx context.Context) ([]entities.Alert, error)
	TriggerAggregation(ctx context.Context) (int, error)
}

type model struct {
	client       api
	step         step
	tab          tab
	cursor       int
	email        string
	userID       string
	currentInput string
	devices      []entities.Device
	budgets      []entities.Budget
	alerts       []entities.Alert
	message      string
	quitting     bool
}

type loginSuccessMsg struct{ userID string }
type dataLoadedMsg struct {
	devices []entities.Device
	budgets []entities.Budget
	alerts  []entities.Alert
}
type actionDoneMsg struct{ text string }
type errMsg struct{ err error }

func (e errMsg) Error() string { return e.err.Error() }

func initialModel(client api) model {
	return model{
		client: client,
		step:   stepEnteringEmail,
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func requestCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 15*time.Second)
}

func loginUser(client api, email, password string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := requestCtx()
		defer cancel()

		userID, err := client.Login(ctx, email, password)
		if err != nil {
			return errMsg{err}
		}
		return loginSuccessMsg{userID: userID}
	}
}

func loadData(client api) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := requestCtx()
		defer cancel()

		devices, err := client.Devices(ctx)
		if err != nil {
			return errMsg{fmt.Errorf("load devices: %w", err)}
		}
		budgets, err := client.Budgets(ctx)
		if err != nil {
			return errMsg{fmt.Errorf("load budgets: %w", err)}
		}
		alerts, err := client.Alerts(ctx)
		if err != nil {
			return errMsg{fmt.Errorf("load alerts: %w", err)}
		}
		return dataLoadedMsg{devices: devices, budgets: budgets, alerts: alerts}
	}
}

func toggleDevice(client api, d entities.Device) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := requestCtx()
		defer cancel()

		next := entities.DeviceOn
		if d.IsOn() {
			next = entities.DeviceOff
		}
		if _, err := client.SetDeviceStatus(ctx, d.ID, next); err != nil {
			return errMsg{err}
		}
		return actionDoneMsg{fmt.Sprintf("%s switched %s", d.Name, next)}
	}
}

func tickDevice(client api, d entities.Device) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := requestCtx()
		defer cancel()

		kwh, err := client.TickDevice(ctx, d.ID)
		if err != nil {
			return errMsg{err}
		}
		return actionDoneMsg{fmt.Sprintf("%s consumed %.3f kWh", d.Name, kwh)}
	}
}

// logoutAndQuit ends the server session before leaving. A failed logout
// still quits.
func logoutAndQuit(client api) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := requestCtx()
		defer cancel()

		_ = client.Logout(ctx)
		return tea.Quit()
	}
}

func triggerAggregation(client api) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := requestCtx()
		defer cancel()

		overruns, err := client.TriggerAggregation(ctx)
		if err != nil {
			return errMsg{err}
		}
		return actionDoneMsg{fmt.Sprintf("Aggregation done, %d budget(s) over limit", overruns)}
	}
}

func (m model) rows() int {
	switch m.tab {
	case tabDevices:
		return len(m.devices)
	case tabBudgets:
		return len(m.budgets)
	}
	return len(m.alerts)
}

func (m model) inputStep() bool {
	return m.step == stepEnteringEmail || m.step == stepEnteringPassword
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.inputStep() {
			return m.updateInput(msg)
		}

		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			if m.userID != "" {
				return m, logoutAndQuit(m.client)
			}
			return m, tea.Quit
		}
		if m.step != stepDashboard {
			return m, nil
		}

		switch msg.String() {
		case "tab", "right", "l":
			m.tab = (m.tab + 1) % tab(len(tabNames))
			m.cursor = 0

		case "shift+tab", "left", "h":
			m.tab = (m.tab + tab(len(tabNames)) - 1) % tab(len(tabNames))
			m.cursor = 0

		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}

		case "down", "j":
			if m.cursor < m.rows()-1 {
				m.cursor++
			}

		case "r":
			m.message = "Refreshing..."
			return m, loadData(m.client)

		case "a":
			m.message = "Running aggregation..."
			return m, triggerAggregation(m.client)

		case "enter":
			if m.tab == tabDevices && m.cursor < len(m.devices) {
				return m, toggleDevice(m.client, m.devices[m.cursor])
			}

		case "t":
			if m.tab == tabDevices && m.cursor < len(m.devices) {
				return m, tickDevice(m.client, m.devices[m.cursor])
			}
		}

	case loginSuccessMsg:
		m.userID = msg.userID
		m.step = stepDashboard
		m.message = successStyle.Render("✓ Logged in as " + m.email)
		return m, loadData(m.client)

	case dataLoadedMsg:
		m.devices = msg.devices
		m.budgets = msg.budgets
		m.alerts = msg.alerts
		if m.cursor >= m.rows() {
			m.cursor = max(m.rows()-1, 0)
		}
		if m.message == "Refreshing..." {
			m.message = ""
		}

	case actionDoneMsg:
		m.message = successStyle.Render("✓ " + msg.text)
		return m, loadData(m.client)

	case errMsg:
		m.message = errorStyle.Render("✗ " + msg.err.Error())
		if m.step == stepLoggingIn {
			m.step = stepEnteringEmail
		}
	}

	return m, nil
}

func (m model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		m.quitting = true
		return m, tea.Quit

	case tea.KeyBackspace:
		if len(m.currentInput) > 0 {
			m.currentInput = m.currentInput[:len(m.currentInput)-1]
		}

	case tea.KeyEnter:
		if m.currentInput == "" {
			return m, nil
		}
		switch m.step {
		case stepEnteringEmail:
			m.email = strings.TrimSpace(m.currentInput)
			m.currentInput = ""
			m.step = stepEnteringPassword
		case stepEnteringPassword:
			password := m.currentInput
			m.currentInput = ""
			m.step = stepLoggingIn
			m.message = "Logging in..."
			return m, loginUser(m.client, m.email, password)
		}

	case tea.KeyRunes, tea.KeySpace:
		m.currentInput += string(msg.Runes)
	}
	return m, nil
}

func (m model) View() string {
	if m.quitting {
		return ""
	}

	var s strings.Builder

	s.WriteString(titleStyle.Render("⚡ Energy Monitor\n\n"))

	switch m.step {
	case stepEnteringEmail:
		if m.message != "" {
			s.WriteString(m.message + "\n\n")
		}
		s.WriteString(promptStyle.Render("Enter your email:\n"))
		s.WriteString(inputStyle.Render("> " + m.currentInput))
		s.WriteString("\n\nPress Enter, Esc to quit\n")

	case stepEnteringPassword:
		s.WriteString(promptStyle.Render("Enter your password:\n"))
		s.WriteString(inputStyle.Render("> " + strings.Repeat("•", len(m.currentInput))))
		s.WriteString("\n\nPress Enter\n")

	case stepLoggingIn:
		s.WriteString(m.message + "\n")

	case stepDashboard:
		s.WriteString(m.viewTabs() + "\n\n")
		switch m.tab {
		case tabDevices:
			s.WriteString(m.viewDevices())
		case tabBudgets:
			s.WriteString(m.viewBudgets())
		case tabAlerts:
			s.WriteString(m.viewAlerts())
		}
		if m.message != "" {
			s.WriteString("\n" + m.message + "\n")
		}
		s.WriteString("\n←/→ tabs, ↑/↓ select, Enter on/off, t tick, a aggregate, r refresh, q quit\n")
	}

	return s.String()
}

func (m model) viewTabs() string {
	parts := make([]string, len(tabNames))
	for i, name := range tabNames {
		if tab(i) == m.tab {
			parts[i] = activeTabStyle.Render(name)
		} else {
			parts[i] = tabStyle.Render(name)
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m model) line(i int, text string) string {
	if m.cursor == i {
		return fmt.Sprintf("> %s\n", selectedStyle.Render(text))
	}
	return fmt.Sprintf("  %s\n", normalStyle.Render(text))
}

func (m model) viewDevices() string {
	if len(m.devices) == 0 {
		return "No devices yet.\n"
	}
	var s strings.Builder
	for i, d := range m.devices {
		s.WriteString(m.line(i, fmt.Sprintf("%-20s %-4s %7.0f W %10.3f kWh", d.Name, d.Status, d.PowerRating, d.EnergyUsage)))
	}
	return s.String()
}

func (m model) viewBudgets() string {
	if len(m.budgets) == 0 {
		return "No budgets yet.\n"
	}
	var s strings.Builder
	for i, b := range m.budgets {
		text := fmt.Sprintf("%-10s %-9s %8.2f / %8.2f kWh", b.Period, b.Status, b.EnergyUsage, b.EnergyLimit)
		if b.Alerts {
			text += overrunStyle.Render("  over limit")
		}
		s.WriteString(m.line(i, text))
	}
	return s.String()
}

func (m model) viewAlerts() string {
	if len(m.alerts) == 0 {
		return "No alerts.\n"
	}
	var s strings.Builder
	for i, a := range m.alerts {
		mark := "•"
		if a.IsRead {
			mark = " "
		}
		s.WriteString(m.line(i, fmt.Sprintf("%s %s  %s", mark, a.CreatedAt.Format("2006-01-02 15:04"), a.Message)))
	}
	return s.String()
}

func main() {
	cfg, err := confs.LoadConfig()
	if err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}

	client, err := newAPIClient(cfg.APIURL)
	if err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}

	p := tea.NewProgram(initialModel(client))
	if _, err := p.Run(); err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
}
