package assistant

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"fast3r/internal/types"
)

// OutputPlaceholder in a recorder command is replaced by the capture file path.
const OutputPlaceholder = "{output}"

// CommandSource records by running an external capture program (for example
// ffmpeg or arecord) that writes to a temporary file until interrupted.
type CommandSource struct {
	Command  []string
	MIMEType string
	// StopTimeout bounds the wait for the program to exit after interrupt.
	StopTimeout time.Duration

	cmd  *exec.Cmd
	path string
}

// NewCommandSource creates a source from argv. Include OutputPlaceholder
// where the program expects its output file.
func NewCommandSource(argv []string, mimeType string) *CommandSource {
	return &CommandSource{Command: argv, MIMEType: mimeType, StopTimeout: 5 * time.Second}
}

func (c *CommandSource) Start(context.Context) error {
	if len(c.Command) == 0 {
		return errors.New("no recorder command configured")
	}
	bin, err := exec.LookPath(c.Command[0])
	if err != nil {
		return fmt.Errorf("recorder unavailable: %w", err)
	}
	f, err := os.CreateTemp("", "fast3r-rec-*"+extensionFor(c.MIMEType))
	if err != nil {
		return err
	}
	c.path = f.Name()
	f.Close()

	args := make([]string, 0, len(c.Command)-1)
	for _, a := range c.Command[1:] {
		args = append(args, strings.ReplaceAll(a, OutputPlaceholder, c.path))
	}
	// Not bound to ctx: the capture must outlive the request that started it.
	c.cmd = exec.Command(bin, args...)
	if err := c.cmd.Start(); err != nil {
		os.Remove(c.path)
		return fmt.Errorf("start recorder: %w", err)
	}
	return nil
}

func (c *CommandSource) Stop() (types.Attachment, error) {
	if c.cmd == nil || c.cmd.Process == nil {
		return types.Attachment{}, errors.New("recorder not running")
	}
	defer os.Remove(c.path)
	defer func() { c.cmd = nil }()

	_ = c.cmd.Process.Signal(os.Interrupt)
	done := make(chan error, 1)
	go func() { done <- c.cmd.Wait() }()
	select {
	case <-done:
	case <-time.After(c.StopTimeout):
		_ = c.cmd.Process.Kill()
		<-done
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		return types.Attachment{}, fmt.Errorf("read recording: %w", err)
	}
	if len(data) == 0 {
		return types.Attachment{}, errors.New("recording is empty")
	}
	return types.Attachment{Data: data, MIMEType: c.MIMEType}, nil
}

// FileSource "records" by reading a prepared audio file on Stop.
type FileSource struct {
	Path     string
	MIMEType string
}

func (f FileSource) Start(context.Context) error {
	if _, err := os.Stat(f.Path); err != nil {
		return fmt.Errorf("audio file unavailable: %w", err)
	}
	return nil
}

func (f FileSource) Stop() (types.Attachment, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return types.Attachment{}, err
	}
	mime := f.MIMEType
	if mime == "" {
		mime = MIMETypeForPath(f.Path)
	}
	return types.Attachment{Data: data, MIMEType: mime}, nil
}

// MIMETypeForPath guesses an audio or image MIME type from a file extension.
func MIMETypeForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".webm":
		return "audio/webm"
	case ".wav":
		return "audio/wav"
	case ".mp3":
		return "audio/mp3"
	case ".ogg", ".oga":
		return "audio/ogg"
	case ".flac":
		return "audio/flac"
	case ".m4a", ".aac":
		return "audio/aac"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	}
	return "application/octet-stream"
}

func extensionFor(mime string) string {
	switch mime {
	case "audio/wav":
		return ".wav"
	case "audio/ogg":
		return ".ogg"
	case "audio/mp3":
		return ".mp3"
	}
	return ".webm"
}
