package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"cardlink/internal/config"
	"cardlink/internal/errors"
	"cardlink/internal/terminal/domain"
)

var (
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#008800", Dark: "#00FF7F"}).Bold(true)
	cancelledStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#CC8800", Dark: "#FFA500"}).Bold(true)
	failedStyle    = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#CC0000", Dark: "#FF6B6B"}).Bold(true)
	labelStyle     = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#666666", Dark: "#B0B0B0"})
	valueStyle     = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#000000", Dark: "#F0F0F0"})
	eventStyles    = map[domain.EventKind]lipgloss.Style{
		domain.EventStatus: lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#0088CC", Dark: "#00BFFF"}),
		domain.EventError:  lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#CC0000", Dark: "#FF6B6B"}),
	}
)

// RenderSuccess renders an approved transaction
func RenderSuccess(s domain.Success) string {
	var b strings.Builder
	b.WriteString(successStyle.Render("APPROVED"))
	b.WriteString("\n")
	writeField(&b, "response code", s.ResponseCode)
	writeField(&b, "message", s.ResponseMessage)
	return b.String()
}

// RenderError renders a transaction error. Cancelled and failed outcomes get
// their own headline; anything else is reported as an error of its type.
// catalog may be nil.
func RenderError(err error, catalog *config.TerminalCatalog) string {
	var b strings.Builder

	outcome, ok := domain.OutcomeFromError(err)
	if !ok {
		errType := errors.TypeOf(err)
		if errType == "" {
			errType = errors.ErrorTypeInternal
		}
		b.WriteString(failedStyle.Render(strings.ToUpper(strings.ReplaceAll(string(errType), "_", " "))))
		b.WriteString("\n")
		writeField(&b, "error", err.Error())
		return b.String()
	}

	switch o := outcome.(type) {
	case domain.Cancelled:
		b.WriteString(cancelledStyle.Render("CANCELLED"))
		b.WriteString("\n")
		writeField(&b, "reason", o.Reason)
	case domain.Failed:
		b.WriteString(failedStyle.Render("FAILED"))
		b.WriteString("\n")
		writeField(&b, "result", fmt.Sprintf("%d", o.ResultCode))
		code := fmt.Sprintf("%d", o.ErrorCode)
		if catalog != nil {
			code += " (" + catalog.DescribeErrorCode(o.ErrorCode) + ")"
		}
		writeField(&b, "error code", code)
		writeField(&b, "message", o.ResponseMessage)
	default:
		b.WriteString(failedStyle.Render(strings.ToUpper(outcome.Kind().String())))
		b.WriteString("\n")
	}
	return b.String()
}

// RenderDevice renders terminal hardware details
func RenderDevice(info domain.DeviceInfo) string {
	var b strings.Builder
	writeField(&b, "serial", info.Serial)
	writeField(&b, "model", info.Model)
	writeField(&b, "firmware", info.Firmware)
	return b.String()
}

// RenderEvent renders one lifecycle notification
func RenderEvent(evt domain.Event) string {
	style, ok := eventStyles[evt.Kind]
	if !ok {
		style = labelStyle
	}
	return fmt.Sprintf("%s %s", style.Render(fmt.Sprintf("[%s]", evt.Kind)), valueStyle.Render(evt.Message))
}

func writeField(b *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, "  %s %s\n", labelStyle.Render(label+":"), valueStyle.Render(value))
}
