package chat

import (
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"fast3r/internal/assistant"
	"fast3r/internal/media"
	"fast3r/internal/types"
)

const helpText = `Commands
  /image <prompt>          generate a concept image
  /video <prompt>          generate a concept video (takes minutes)
  /edit <prompt>           edit the attached image
  /attach <path>           attach an image to the next message
  /upload <path> [caption] analyze an image for reconstruction
  /size 1K|2K|4K           image size for /image
  /aspect 16:9|9:16        aspect ratio for /video
  /save <path>             save the most recent image or video
  /usage                   token usage so far
  /quit                    exit

Keys
  Enter send   Ctrl+R push-to-talk   Ctrl+T extended reasoning   Esc quit`

// handleLocalCommand runs the commands that never reach the provider.
// /image, /video and /edit fall through to the session.
func (m *Model) handleLocalCommand(input string) (bool, tea.Cmd) {
	if !strings.HasPrefix(input, "/") {
		return false, nil
	}
	fields := strings.Fields(input)
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "/help", "/?":
		m.statusMessage = ""
		m.notice(helpText)
		return true, nil

	case "/quit", "/exit":
		return true, m.quit()

	case "/size":
		if len(args) != 1 {
			m.err = fmt.Errorf("usage: /size 1K|2K|4K")
			return true, nil
		}
		if err := m.session.SetImageSize(types.ImageSize(strings.ToUpper(args[0]))); err != nil {
			m.err = err
			return true, nil
		}
		m.statusMessage = "Image size: " + string(m.session.ImageSize())
		return true, nil

	case "/aspect":
		if len(args) != 1 {
			m.err = fmt.Errorf("usage: /aspect 16:9|9:16")
			return true, nil
		}
		if err := m.session.SetAspectRatio(types.AspectRatio(args[0])); err != nil {
			m.err = err
			return true, nil
		}
		m.statusMessage = "Aspect ratio: " + string(m.session.AspectRatio())
		return true, nil

	case "/attach":
		if len(args) != 1 {
			m.err = fmt.Errorf("usage: /attach <path>")
			return true, nil
		}
		img, err := readImage(args[0])
		if err != nil {
			m.err = err
			return true, nil
		}
		m.attached, m.attachedName = &img, args[0]
		m.statusMessage = "Attached " + args[0]
		return true, nil

	case "/upload":
		if len(args) < 1 {
			m.err = fmt.Errorf("usage: /upload <path> [caption]")
			return true, nil
		}
		img, err := readImage(args[0])
		if err != nil {
			m.err = err
			return true, nil
		}
		m.isLoading = true
		m.statusMessage = loadingStatus("analyze_image")
		return true, tea.Batch(m.uploadCmd(img, strings.Join(args[1:], " ")), m.spinner.Tick)

	case "/save":
		if len(args) != 1 {
			m.err = fmt.Errorf("usage: /save <path>")
			return true, nil
		}
		if err := m.saveLatestMedia(args[0]); err != nil {
			m.err = err
			return true, nil
		}
		m.statusMessage = "Saved " + args[0]
		return true, nil

	case "/usage":
		if m.cfg.Usage == nil {
			m.err = fmt.Errorf("usage tracking is disabled")
			return true, nil
		}
		m.notice(formatUsage(m.cfg.Usage.Stats().Total))
		return true, nil
	}
	return false, nil
}

// notice shows local output in the status line area without touching the
// conversation log.
func (m *Model) notice(text string) {
	m.localNotice = text
}

// saveLatestMedia writes the newest image or video in the conversation to path.
func (m *Model) saveLatestMedia(path string) error {
	msgs := m.session.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		msg := msgs[i]
		if msg.Role != types.RoleAssistant || msg.MediaURL == "" {
			continue
		}
		if strings.HasPrefix(msg.MediaURL, media.HandleScheme) {
			if m.cfg.Media == nil {
				return fmt.Errorf("no media store available")
			}
			return m.cfg.Media.WriteFile(msg.MediaURL, path)
		}
		data, _, err := media.DecodeDataURI(msg.MediaURL)
		if err != nil {
			return err
		}
		return os.WriteFile(path, data, 0644)
	}
	return fmt.Errorf("no generated media to save yet")
}

func readImage(path string) (types.Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Attachment{}, fmt.Errorf("read image: %w", err)
	}
	mime := assistant.MIMETypeForPath(path)
	if !strings.HasPrefix(mime, "image/") {
		return types.Attachment{}, fmt.Errorf("%s is not a supported image", path)
	}
	return types.Attachment{Data: data, MIMEType: mime}, nil
}
