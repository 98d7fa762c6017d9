// Package player coordinates playback across the many video cards of a
// scrolling feed: it starts and stops players as cards enter and leave the
// viewport, counts a view once a card has stayed visible long enough, keeps a
// single mute state across every mounted player, and reconciles optimistic
// like toggles with the server.
package player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// VisibleThreshold is the intersection ratio at which a card counts as visible.
const VisibleThreshold = 0.6

// DefaultViewDelay is how long a card must stay visible before one view is
// recorded for it.
const DefaultViewDelay = time.Second

// Surface abstracts the playback element of a mounted card.
type Surface interface {
	Play() error
	Pause()
	Rewind()
	SetMuted(muted bool)
}

// MuteControl abstracts a mute button's displayed icon or label.
type MuteControl interface {
	ShowMuted(muted bool)
}

// LikeDisplay abstracts a card's like icon and counter.
type LikeDisplay interface {
	ShowLikes(count int64, liked bool)
}

// EngagementClient is the server API the player reports to.
type EngagementClient interface {
	ToggleLike(ctx context.Context, videoID string) (likes int64, liked bool, err error)
	RecordView(ctx context.Context, videoID string) (int64, error)
}

// Card describes one video card at mount time. MuteControl and LikeDisplay
// may be nil when the card renders no such control.
type Card struct {
	VideoID     string
	Surface     Surface
	MuteControl MuteControl
	LikeDisplay LikeDisplay

	// Like state as rendered from the feed response.
	LikeCount int64
	Liked     bool
}

type stopTimer func() bool

type cardState struct {
	Card

	visible bool
	// counted is terminal for the lifetime of the mounted card: repeated
	// visibility cycles never record another view.
	counted     bool
	cancelTimer stopTimer
	unsubscribe func()
}

// Coordinator drives every mounted card from viewport and control events.
type Coordinator struct {
	mu    sync.Mutex
	cards map[string]*cardState

	mute      *MuteState
	api       EngagementClient
	viewDelay time.Duration
	logger    *slog.Logger

	startTimer func(d time.Duration, fn func()) stopTimer
}

// Option tweaks Coordinator construction.
type Option func(*Coordinator)

// WithViewDelay overrides the visible-duration threshold for counting a view.
func WithViewDelay(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.viewDelay = d
		}
	}
}

// WithTimer overrides the timer source. Tests use this to fire the view timer
// deterministically.
func WithTimer(start func(d time.Duration, fn func()) stopTimer) Option {
	return func(c *Coordinator) {
		if start != nil {
			c.startTimer = start
		}
	}
}

// NewCoordinator constructs a Coordinator reporting engagement to api.
func NewCoordinator(api EngagementClient, logger *slog.Logger, opts ...Option) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}

	c := &Coordinator{
		cards:     make(map[string]*cardState),
		mute:      NewMuteState(),
		api:       api,
		viewDelay: DefaultViewDelay,
		logger:    logger,
		startTimer: func(d time.Duration, fn func()) stopTimer {
			return time.AfterFunc(d, fn).Stop
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Mount registers a card and brings its surface and mute control in line with
// the shared mute state before returning.
func (c *Coordinator) Mount(card Card) error {
	if card.VideoID == "" {
		return errors.New("player: card video id is required")
	}
	if card.Surface == nil {
		return fmt.Errorf("player: card %s has no surface", card.VideoID)
	}

	c.mu.Lock()
	if existing, ok := c.cards[card.VideoID]; ok {
		c.mu.Unlock()
		c.teardown(existing)
		c.mu.Lock()
	}
	cs := &cardState{Card: card}
	c.cards[card.VideoID] = cs
	c.mu.Unlock()

	cs.unsubscribe = c.mute.Subscribe(func(muted bool) {
		card.Surface.SetMuted(muted)
		if card.MuteControl != nil {
			card.MuteControl.ShowMuted(muted)
		}
	})

	return nil
}

// Unmount removes a card, cancelling any pending view timer.
func (c *Coordinator) Unmount(videoID string) {
	c.mu.Lock()
	cs, ok := c.cards[videoID]
	if ok {
		delete(c.cards, videoID)
	}
	c.mu.Unlock()

	if ok {
		c.teardown(cs)
	}
}

// MountedCount reports how many cards are currently mounted.
func (c *Coordinator) MountedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cards)
}

// SetVisibility feeds an intersection ratio for a card. Crossing the
// threshold upward starts playback and arms the view timer; crossing downward
// cancels the timer, pauses, and rewinds.
func (c *Coordinator) SetVisibility(videoID string, ratio float64) {
	visible := ratio >= VisibleThreshold

	c.mu.Lock()
	cs, ok := c.cards[videoID]
	if !ok || cs.visible == visible {
		c.mu.Unlock()
		return
	}
	cs.visible = visible

	if !visible {
		cancel := cs.cancelTimer
		cs.cancelTimer = nil
		c.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		cs.Surface.Pause()
		cs.Surface.Rewind()
		return
	}

	arm := !cs.counted && cs.cancelTimer == nil
	if arm {
		cs.cancelTimer = c.startTimer(c.viewDelay, func() { c.viewTimerFired(videoID) })
	}
	c.mu.Unlock()

	// Autoplay rejection (e.g. browser policy) is expected and swallowed.
	if err := cs.Surface.Play(); err != nil {
		c.logger.Debug("autoplay rejected", "videoId", videoID, "error", err)
	}
}

// ToggleMute flips the shared mute flag for every mounted player and returns
// the new value. All surfaces and mute controls observe the change before
// this returns.
func (c *Coordinator) ToggleMute() bool {
	return c.mute.Toggle()
}

// Muted reports the shared mute flag.
func (c *Coordinator) Muted() bool {
	return c.mute.Muted()
}

// ToggleLike optimistically flips the card's displayed like state, then calls
// the server and overwrites the display with its authoritative answer. On
// transport failure the optimistic flip is reverted and the error returned
// for inline display.
func (c *Coordinator) ToggleLike(ctx context.Context, videoID string) (int64, bool, error) {
	c.mu.Lock()
	cs, ok := c.cards[videoID]
	if !ok {
		c.mu.Unlock()
		return 0, false, fmt.Errorf("player: card %s not mounted", videoID)
	}

	prevCount, prevLiked := cs.LikeCount, cs.Liked
	if cs.Liked {
		cs.Liked = false
		if cs.LikeCount > 0 {
			cs.LikeCount--
		}
	} else {
		cs.Liked = true
		cs.LikeCount++
	}
	count, liked := cs.LikeCount, cs.Liked
	display := cs.LikeDisplay
	c.mu.Unlock()

	if display != nil {
		display.ShowLikes(count, liked)
	}

	serverCount, serverLiked, err := c.api.ToggleLike(ctx, videoID)
	if err != nil {
		c.mu.Lock()
		if cs, ok := c.cards[videoID]; ok {
			cs.LikeCount, cs.Liked = prevCount, prevLiked
		}
		c.mu.Unlock()
		if display != nil {
			display.ShowLikes(prevCount, prevLiked)
		}
		return prevCount, prevLiked, fmt.Errorf("toggle like %s: %w", videoID, err)
	}

	c.mu.Lock()
	if cs, ok := c.cards[videoID]; ok {
		cs.LikeCount, cs.Liked = serverCount, serverLiked
	}
	c.mu.Unlock()
	if display != nil {
		display.ShowLikes(serverCount, serverLiked)
	}

	return serverCount, serverLiked, nil
}

// HandlePlaybackError removes the failing card from the feed entirely; its
// backing blob is gone or unreadable and a broken player helps nobody.
func (c *Coordinator) HandlePlaybackError(videoID string) {
	c.logger.Warn("removing card after playback error", "videoId", videoID)
	c.Unmount(videoID)
}

func (c *Coordinator) viewTimerFired(videoID string) {
	c.mu.Lock()
	cs, ok := c.cards[videoID]
	if !ok || !cs.visible || cs.counted {
		c.mu.Unlock()
		return
	}
	cs.counted = true
	cs.cancelTimer = nil
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := c.api.RecordView(ctx, videoID); err != nil {
		c.logger.Error("record view", "videoId", videoID, "error", err)
	}
}

func (c *Coordinator) teardown(cs *cardState) {
	if cs.cancelTimer != nil {
		cs.cancelTimer()
		cs.cancelTimer = nil
	}
	if cs.unsubscribe != nil {
		cs.unsubscribe()
		cs.unsubscribe = nil
	}
}
