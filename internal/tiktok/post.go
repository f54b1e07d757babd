package tiktok

import (
	"context"
	"sync"

	"github.com/postsiva/postsiva-cli/internal/state"
)

const (
	photoPostFallback = "Failed to post photos"
	draftURLFallback  = "Failed to upload draft video"
	draftFileFallback = "Failed to upload draft video file"
)

// Posts holds the last result of each posting action. Each action only
// touches its own slot. Progress is nil until a file upload starts.
type Posts struct {
	Photo     *PhotoPostResponse
	DraftURL  *DraftVideoResponse
	DraftFile *DraftVideoResponse
	Progress  *int
}

type PostOrchestrator struct {
	client  *Client
	machine *state.Machine[Posts]
}

func NewPostOrchestrator(client *Client) *PostOrchestrator {
	return &PostOrchestrator{
		client:  client,
		machine: state.NewMachine[Posts]("tiktok-post"),
	}
}

func (o *PostOrchestrator) PostPhotos(ctx context.Context, req PhotoPostRequest) (*PhotoPostResponse, error) {
	return state.Run(ctx, o.machine, state.Action[Posts, *PhotoPostResponse]{
		Fallback: photoPostFallback,
		Clear:    func(p *Posts) { p.Photo = nil },
		Call: func(ctx context.Context) (*PhotoPostResponse, error) {
			return o.client.PostPhotos(ctx, req)
		},
		Store: func(p *Posts, res *PhotoPostResponse) { p.Photo = res },
	})
}

func (o *PostOrchestrator) UploadDraftVideoURL(ctx context.Context, req DraftVideoURLRequest) (*DraftVideoResponse, error) {
	return state.Run(ctx, o.machine, state.Action[Posts, *DraftVideoResponse]{
		Fallback: draftURLFallback,
		Clear:    func(p *Posts) { p.DraftURL = nil },
		Call: func(ctx context.Context) (*DraftVideoResponse, error) {
			return o.client.UploadDraftVideoURL(ctx, req)
		},
		Store: func(p *Posts, res *DraftVideoResponse) { p.DraftURL = res },
	})
}

// UploadDraftVideoFile uploads file and reports progress to onProgress, if
// set: 0 first, increasing values while bytes are sent, and 100 once the
// backend accepted the upload. On failure the last reported value stays.
func (o *PostOrchestrator) UploadDraftVideoFile(ctx context.Context, file DraftVideoFile, onProgress func(int)) (*DraftVideoResponse, error) {
	progress := &progressSink{report: onProgress}

	return state.Run(ctx, o.machine, state.Action[Posts, *DraftVideoResponse]{
		Fallback: draftFileFallback,
		Clear: func(p *Posts) {
			p.DraftFile = nil
			p.Progress = intPtr(0)
		},
		Call: func(ctx context.Context) (*DraftVideoResponse, error) {
			if err := o.client.authorized(); err != nil {
				return nil, err
			}
			progress.emit(0)
			res, err := o.client.UploadDraftVideoFile(ctx, file, func(percent int) {
				if progress.emit(percent) {
					o.machine.Update(func(p *Posts) { p.Progress = intPtr(percent) })
				}
			})
			if err != nil {
				progress.stop()
				return nil, err
			}
			progress.emit(100)
			progress.stop()
			return res, nil
		},
		Store: func(p *Posts, res *DraftVideoResponse) {
			p.DraftFile = res
			p.Progress = intPtr(100)
		},
	})
}

func (o *PostOrchestrator) Reset() {
	o.machine.Reset()
}

func (o *PostOrchestrator) State() state.State[Posts] {
	return o.machine.State()
}

func (o *PostOrchestrator) Subscribe(fn func(state.State[Posts])) func() {
	return o.machine.Subscribe(fn)
}

// progressSink forwards strictly increasing values until stopped. Reports
// arrive from the upload's writer goroutine, which may outlive the call.
type progressSink struct {
	mu      sync.Mutex
	last    int
	started bool
	stopped bool
	report  func(int)
}

func (p *progressSink) emit(percent int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped || (p.started && percent <= p.last) {
		return false
	}
	p.started = true
	p.last = percent
	if p.report != nil {
		p.report(percent)
	}
	return true
}

func (p *progressSink) stop() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
}

func intPtr(v int) *int { return &v }
