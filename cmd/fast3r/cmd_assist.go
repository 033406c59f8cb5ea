package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"fast3r/cmd/fast3r/chat"
	"fast3r/internal/assistant"
	"fast3r/internal/media"
	"fast3r/internal/types"
)

var (
	// chat
	resumeSession bool

	// ask
	askImage string
	askDeep  bool

	// image / video
	outputPath  string
	imageSize   string
	aspectRatio string
	editSource  string

	// advise
	adviseImages  int
	adviseSubject string
)

// chatCmd starts the interactive TUI
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start the interactive assistant",
	Args:  cobra.NoArgs,
	RunE:  runChat,
}

// askCmd sends one message and prints the reply
var askCmd = &cobra.Command{
	Use:   "ask [message]",
	Short: "Send one message to the assistant",
	Long: `Sends one message through the same routing as the chat interface.

Examples:
  fast3r ask "who won the match today?"
  fast3r ask --deep "plan a capture session for a car interior"
  fast3r ask --image car.jpg "how many more photos do I need?"
  fast3r ask "/image a red cube on a marble table" -o cube.png`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

var imageCmd = &cobra.Command{
	Use:   "image [prompt]",
	Short: "Generate (or, with --edit, edit) a concept image",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runImage,
}

var videoCmd = &cobra.Command{
	Use:   "video [prompt]",
	Short: "Generate a concept video",
	Long: `Submits a video generation request and polls until the video is ready
(bounded by video.timeout in the config), then writes it to --output.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runVideo,
}

var transcribeCmd = &cobra.Command{
	Use:   "transcribe [audio-file]",
	Short: "Transcribe a voice recording",
	Args:  cobra.ExactArgs(1),
	RunE:  runTranscribe,
}

var adviseCmd = &cobra.Command{
	Use:   "advise",
	Short: "Recommend reconstruction settings for a photo set",
	Args:  cobra.NoArgs,
	RunE:  runAdvise,
}

func init() {
	chatCmd.Flags().BoolVar(&resumeSession, "resume", false, "Resume the most recent session")
	rootCmd.Flags().BoolVar(&resumeSession, "resume", false, "Resume the most recent session")

	askCmd.Flags().StringVar(&askImage, "image", "", "Attach an image")
	askCmd.Flags().BoolVar(&askDeep, "deep", false, "Use extended reasoning")
	askCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write generated media to this file")

	imageCmd.Flags().StringVarP(&outputPath, "output", "o", "image.png", "Output file")
	imageCmd.Flags().StringVar(&imageSize, "size", "", "Image size: 1K, 2K or 4K (default from config)")
	imageCmd.Flags().StringVar(&editSource, "edit", "", "Edit this image instead of generating a new one")

	videoCmd.Flags().StringVarP(&outputPath, "output", "o", "video.mp4", "Output file")
	videoCmd.Flags().StringVar(&aspectRatio, "aspect", "", "Aspect ratio: 16:9 or 9:16 (default from config)")

	adviseCmd.Flags().IntVar(&adviseImages, "images", 0, "Number of photos")
	adviseCmd.Flags().StringVar(&adviseSubject, "subject", "", "What the photos show")
	_ = adviseCmd.MarkFlagRequired("images")
	_ = adviseCmd.MarkFlagRequired("subject")
}

func runChat(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	sess, err := a.newSession(resumeSession)
	if err != nil {
		return err
	}
	return chat.Run(cmd.Context(), chat.Config{
		Session:        sess,
		Media:          a.media,
		Usage:          a.tracker,
		RequestTimeout: timeout,
	})
}

func runAsk(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	sess, err := a.newSession(false)
	if err != nil {
		return err
	}
	req := assistant.Request{Text: strings.Join(args, " "), UseExtendedReasoning: askDeep}
	if askImage != "" {
		img, err := readAttachment(askImage)
		if err != nil {
			return err
		}
		req.Image = &img
	}

	reply, err := sess.Send(cmd.Context(), req)
	if err != nil {
		return err
	}
	return printReply(cmd.OutOrStdout(), a, reply)
}

func runImage(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	prompt := strings.Join(args, " ")
	var uri string
	if editSource != "" {
		img, err := readAttachment(editSource)
		if err != nil {
			return err
		}
		uri, err = a.gateway.EditImage(cmd.Context(), img, prompt)
		if err != nil {
			return err
		}
	} else {
		size := types.ImageSize(strings.ToUpper(orDefault(imageSize, cfg.Assistant.ImageSize)))
		uri, err = a.gateway.GenerateImage(cmd.Context(), prompt, size)
		if err != nil {
			return err
		}
	}
	return writeMedia(cmd.OutOrStdout(), a, uri, outputPath)
}

func runVideo(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	aspect := types.AspectRatio(orDefault(aspectRatio, cfg.Assistant.AspectRatio))
	fmt.Fprintf(cmd.ErrOrStderr(), "Generating %s video, polling every %s...\n", aspect, cfg.GetPollInterval())
	handle, err := a.gateway.GenerateVideo(cmd.Context(), strings.Join(args, " "), aspect)
	if err != nil {
		return err
	}
	return writeMedia(cmd.OutOrStdout(), a, handle, outputPath)
}

func runTranscribe(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	// FileSource drives the same recorder path as push-to-talk.
	rec := assistant.NewRecorder(assistant.FileSource{Path: args[0]})
	if err := rec.Start(cmd.Context()); err != nil {
		return err
	}
	audio, err := rec.Stop()
	if err != nil {
		return err
	}
	text, err := a.gateway.Transcribe(cmd.Context(), audio)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), text)
	return nil
}

func runAdvise(cmd *cobra.Command, args []string) error {
	if adviseImages <= 0 {
		return fmt.Errorf("--images must be positive")
	}
	a, err := newApp(cmd.Context(), cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	settings, explanation := a.gateway.RequestAdvice(cmd.Context(), adviseImages, adviseSubject)
	printSettings(cmd.OutOrStdout(), settings)
	fmt.Fprintf(cmd.OutOrStdout(), "\n%s\n", explanation)
	return nil
}

// =============================================================================
// OUTPUT HELPERS
// =============================================================================

func printReply(w io.Writer, a *app, reply types.Message) error {
	if reply.Content != "" {
		fmt.Fprintln(w, reply.Content)
	}
	for _, link := range reply.GroundingLinks {
		fmt.Fprintf(w, "  - %s <%s>\n", link.Title, link.URI)
	}
	if reply.MediaURL == "" {
		return nil
	}
	if outputPath == "" {
		fmt.Fprintf(w, "(%s generated; pass --output to save it)\n", reply.Kind)
		return nil
	}
	return writeMedia(w, a, reply.MediaURL, outputPath)
}

// writeMedia saves a data URI or blob handle to path.
func writeMedia(w io.Writer, a *app, ref, path string) error {
	if strings.HasPrefix(ref, media.HandleScheme) {
		if err := a.media.WriteFile(ref, path); err != nil {
			return err
		}
		a.media.Release(ref)
	} else {
		data, _, err := media.DecodeDataURI(ref)
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return err
		}
	}
	fmt.Fprintf(w, "Saved %s\n", path)
	return nil
}

func printSettings(w io.Writer, s types.JobSettings) {
	fmt.Fprintf(w, "resolution:        %s\n", s.Resolution)
	fmt.Fprintf(w, "mode:              %s\n", s.Mode)
	fmt.Fprintf(w, "camera intrinsics: %s\n", s.CameraIntrinsics)
	fmt.Fprintf(w, "optimization:      %s\n", s.Optimization)
}

func readAttachment(path string) (types.Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Attachment{}, err
	}
	return types.Attachment{Data: data, MIMEType: assistant.MIMETypeForPath(path)}, nil
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
