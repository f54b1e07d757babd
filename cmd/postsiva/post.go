package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/postsiva/postsiva-cli/internal/media"
	"github.com/postsiva/postsiva-cli/internal/tiktok"
)

func newPostCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "post",
		Short: "Publish content to the linked TikTok account",
	}
	cmd.AddCommand(newPostPhotoCmd(), newPostDraftURLCmd(), newPostDraftFileCmd())
	return cmd
}

// loadPhotoRequest reads a photo post from a YAML file
func loadPhotoRequest(path string) (tiktok.PhotoPostRequest, error) {
	var req tiktok.PhotoPostRequest
	data, err := os.ReadFile(path)
	if err != nil {
		return req, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &req); err != nil {
		return req, fmt.Errorf("parse %s: %w", path, err)
	}
	return req, nil
}

func newPostPhotoCmd() *cobra.Command {
	var (
		file    string
		stage   bool
		privacy string
		req     tiktok.PhotoPostRequest
	)

	cmd := &cobra.Command{
		Use:   "photo [PHOTO...]",
		Short: "Publish a photo post",
		Long: `Publish a photo post from image URLs. Local paths are accepted with --stage,
which uploads them to the configured media bucket first. With --file the
request is read from YAML and the remaining flags are ignored.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file != "" {
				loaded, err := loadPhotoRequest(file)
				if err != nil {
					return err
				}
				req = loaded
			} else {
				req.PhotoURLs = args
				req.PrivacyLevel = tiktok.PrivacyLevel(privacy)
			}

			var (
				posts  *tiktok.PostOrchestrator
				stager media.Stager
			)
			return withApp(cmd.Context(), func(ctx context.Context) error {
				if stage {
					urls, err := media.StageRefs(ctx, stager, req.PhotoURLs)
					if err != nil {
						return err
					}
					req.PhotoURLs = urls
				}

				resp, err := posts.PostPhotos(ctx, req)
				if err != nil {
					return err
				}
				msg := resp.Message
				if msg == "" {
					msg = "Photo post submitted"
				}
				pterm.Success.Println(msg)
				return nil
			}, &posts, &stager)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Read the request from a YAML file")
	cmd.Flags().BoolVar(&stage, "stage", false, "Upload local photos to the media bucket first")
	cmd.Flags().StringVar(&req.Title, "title", "", "Post title")
	cmd.Flags().StringVar(&req.Description, "description", "", "Post description")
	cmd.Flags().IntVar(&req.CoverIndex, "cover-index", 0, "Index of the cover photo")
	cmd.Flags().StringVar(&privacy, "privacy", string(tiktok.PrivacySelfOnly), "Privacy level")
	cmd.Flags().BoolVar(&req.DisableComment, "disable-comment", false, "Disable comments")
	cmd.Flags().BoolVar(&req.AutoAddMusic, "auto-add-music", false, "Let TikTok add music")
	cmd.Flags().BoolVar(&req.BrandContentToggle, "brand-content", false, "Mark as paid partnership")
	cmd.Flags().BoolVar(&req.BrandOrganicToggle, "brand-organic", false, "Mark as promoting your own business")
	return cmd
}

func printDraft(resp *tiktok.DraftVideoResponse) {
	msg := resp.Message
	if msg == "" {
		msg = "Draft video queued"
	}
	pterm.Success.Println(msg)
	if id := resp.PublishID(); id != "" {
		pterm.Info.Printfln("publish id: %s", id)
	}
}

func newPostDraftURLCmd() *cobra.Command {
	var (
		req   tiktok.DraftVideoURLRequest
		stage bool
	)

	cmd := &cobra.Command{
		Use:   "draft-url VIDEO",
		Short: "Queue a draft video from a URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.VideoURL = args[0]

			var (
				posts  *tiktok.PostOrchestrator
				stager media.Stager
			)
			return withApp(cmd.Context(), func(ctx context.Context) error {
				if stage && !media.IsRemote(req.VideoURL) {
					urls, err := media.StageRefs(ctx, stager, []string{req.VideoURL})
					if err != nil {
						return err
					}
					req.VideoURL = urls[0]
				}

				resp, err := posts.UploadDraftVideoURL(ctx, req)
				if err != nil {
					return err
				}
				printDraft(resp)
				return nil
			}, &posts, &stager)
		},
	}

	cmd.Flags().StringVar(&req.Title, "title", "", "Draft title")
	cmd.Flags().BoolVar(&stage, "stage", false, "Upload a local video to the media bucket first")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func newPostDraftFileCmd() *cobra.Command {
	var title string

	cmd := &cobra.Command{
		Use:   "draft-file FILE",
		Short: "Upload a local video as a draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			info, err := f.Stat()
			if err != nil {
				return err
			}

			file := tiktok.DraftVideoFile{
				Name:   filepath.Base(args[0]),
				Size:   info.Size(),
				Reader: f,
				Title:  title,
			}

			var posts *tiktok.PostOrchestrator
			return withApp(cmd.Context(), func(ctx context.Context) error {
				bar, _ := pterm.DefaultProgressbar.WithTotal(100).WithTitle("Uploading " + file.Name).Start()
				last := 0
				resp, err := posts.UploadDraftVideoFile(ctx, file, func(percent int) {
					if percent > last {
						bar.Add(percent - last)
						last = percent
					}
				})
				if _, stopErr := bar.Stop(); stopErr != nil && err == nil {
					err = stopErr
				}
				if err != nil {
					return err
				}
				printDraft(resp)
				return nil
			}, &posts)
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Draft title")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}
