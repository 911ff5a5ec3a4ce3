package tui

import "github.com/charmbracelet/lipgloss"

// Styles holds the lipgloss styles used by the app
type Styles struct {
	Sidebar       lipgloss.Style
	SidebarActive lipgloss.Style
	UnreadBadge   lipgloss.Style
	ChatHeader    lipgloss.Style
	Sender        lipgloss.Style
	OwnSender     lipgloss.Style
	Timestamp     lipgloss.Style
	MentionText   lipgloss.Style
	InputBox      lipgloss.Style
	Popup         lipgloss.Style
	PopupSelected lipgloss.Style
	Toast         lipgloss.Style
	ToastMention  lipgloss.Style
	StatusBar     lipgloss.Style
	StatusError   lipgloss.Style
}

// DefaultStyles returns the default style set
func DefaultStyles() Styles {
	return Styles{
		Sidebar:       lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		SidebarActive: lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true),
		UnreadBadge:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		ChatHeader:    lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true).Underline(true),
		Sender:        lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true),
		OwnSender:     lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
		Timestamp:     lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		MentionText:   lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),
		InputBox:      lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1),
		Popup:         lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(0, 1),
		PopupSelected: lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true),
		Toast:         lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1).Foreground(lipgloss.Color("252")),
		ToastMention:  lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1).Foreground(lipgloss.Color("214")).Bold(true),
		StatusBar:     lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		StatusError:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
}
