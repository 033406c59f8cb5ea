package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"fast3r/internal/media"
	"fast3r/internal/types"
	"fast3r/internal/usage"
)

// =============================================================================
// VIEW RENDERING
// =============================================================================

func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.viewport.View(),
		m.renderStatus(),
		m.textarea.View(),
		m.renderFooter(),
	)
}

func (m Model) renderHistory() string {
	var sb strings.Builder
	for _, msg := range m.session.Messages() {
		if msg.Role == types.RoleUser {
			sb.WriteString(m.styles.UserLabel.Render("You") + "\n")
			if msg.Content != "" {
				sb.WriteString(m.styles.UserInput.Render(msg.Content) + "\n")
			}
			if msg.MediaURL != "" {
				sb.WriteString(m.renderMedia(msg) + "\n")
			}
			sb.WriteString("\n")
			continue
		}

		sb.WriteString(m.styles.AssistantLabel.Render("Fast3R") + "\n")
		if msg.Content != "" {
			sb.WriteString(m.safeRenderMarkdown(msg.Content))
		}
		if msg.MediaURL != "" {
			sb.WriteString(m.renderMedia(msg) + "\n")
		}
		for _, link := range msg.GroundingLinks {
			title := link.Title
			if title == "" {
				title = link.URI
			}
			sb.WriteString("  " + m.styles.Muted.Render("↗ ") + m.styles.Link.Render(title) + " " + m.styles.Muted.Render(link.URI) + "\n")
		}
		sb.WriteString("\n")
	}
	if m.localNotice != "" {
		sb.WriteString(m.styles.Muted.Render(m.localNotice) + "\n")
	}
	return sb.String()
}

// renderMedia describes a media attachment; terminals cannot show it inline.
func (m Model) renderMedia(msg types.Message) string {
	label := "image"
	if msg.Kind == types.KindVideo {
		label = "video"
	}
	detail := msg.MediaURL
	if strings.HasPrefix(msg.MediaURL, media.HandleScheme) {
		if m.cfg.Media != nil {
			if blob, ok := m.cfg.Media.Open(msg.MediaURL); ok {
				detail = fmt.Sprintf("%s, %s", blob.MIMEType, humanBytes(len(blob.Data)))
			}
		}
	} else if data, mime, err := media.DecodeDataURI(msg.MediaURL); err == nil {
		detail = fmt.Sprintf("%s, %s", mime, humanBytes(len(data)))
	}
	return m.styles.Media.Render(fmt.Sprintf("[%s] %s  (/save <path>)", label, detail))
}

// safeRenderMarkdown renders markdown with panic recovery
func (m Model) safeRenderMarkdown(content string) (result string) {
	defer func() {
		if r := recover(); r != nil {
			result = content + "\n"
		}
	}()

	if m.renderer != nil {
		if rendered, err := m.renderer.Render(content); err == nil {
			return rendered
		}
	}
	return content + "\n"
}

func (m Model) renderHeader() string {
	badges := []string{
		m.styles.Badge.Render(string(m.session.ImageSize())),
		m.styles.Badge.Render(string(m.session.AspectRatio())),
	}
	if m.extendedReasoning {
		badges = append(badges, m.styles.Badge.Render("deep"))
	}
	title := m.styles.Header.Render("Fast3R assistant")
	return lipgloss.JoinHorizontal(lipgloss.Top, title, " ", strings.Join(badges, " "))
}

func (m Model) renderStatus() string {
	switch {
	case m.err != nil:
		return m.styles.Error.Render("Error: " + m.err.Error())
	case m.isRecording:
		return m.styles.Warning.Render("● " + m.statusMessage)
	case m.isLoading:
		return m.spinner.View() + " " + m.styles.Muted.Render(m.statusMessage)
	case m.attachedName != "":
		return m.styles.Success.Render("Attached: " + m.attachedName)
	}
	return m.styles.Muted.Render(m.statusMessage)
}

func (m Model) renderFooter() string {
	return m.styles.Footer.Render("Enter send · Ctrl+R talk · Ctrl+T reasoning · /help · Esc quit")
}

func formatUsage(t usage.TokenCounts) string {
	return fmt.Sprintf("Token usage: %d calls, %d input, %d output, %d thinking, %d total",
		t.Calls, t.Input, t.Output, t.Thinking, t.Total)
}

func humanBytes(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	}
	return fmt.Sprintf("%d B", n)
}
