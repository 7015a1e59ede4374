package catalog

import (
	_ "embed"
	"log/slog"
	"path/filepath"
	"sync"

	"voicebox/internal/logging"
	"voicebox/internal/voicepack"
	"voicebox/internal/watch"
)

//go:embed default_pack/index.json
var builtInManifest []byte

// Catalog owns the single current voice pack. The pack is replaced wholesale
// on successful import and observers are notified of the new value; partial
// states are never observable.
type Catalog struct {
	logger  *slog.Logger
	current *watch.Value[*voicepack.VoicePack]

	mu       sync.Mutex
	location string
}

// New constructs an empty catalog.
func New(logger *slog.Logger) *Catalog {
	return &Catalog{
		logger:  logging.NewComponentLogger(logger, "catalog"),
		current: watch.NewValue[*voicepack.VoicePack](nil),
	}
}

// Current returns the pack in use, or nil before any load.
func (c *Catalog) Current() *voicepack.VoicePack {
	return c.current.Get()
}

// SetCurrent atomically replaces the current pack and notifies observers.
// location is the directory the pack's relative audio paths resolve against;
// empty for packs that carry no audio on disk.
func (c *Catalog) SetCurrent(pack *voicepack.VoicePack, location string) {
	c.mu.Lock()
	c.location = location
	c.mu.Unlock()
	c.current.Set(pack)
	if pack != nil {
		c.logger.Info("current pack replaced",
			logging.String("title", pack.Title),
			logging.String("location", location),
			logging.Int("sections", len(pack.Sections)),
			logging.Int("voices", len(pack.Voices)))
	}
}

// CurrentLocation returns the directory backing the current pack's audio
// files, or empty when the pack carries none.
func (c *Catalog) CurrentLocation() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.location
}

// AudioPath resolves a voice's relative audio path against the current pack's
// directory. When the pack has no backing directory the result is empty and
// names no file.
func (c *Catalog) AudioPath(relative string) string {
	location := c.CurrentLocation()
	if location == "" {
		return ""
	}
	return filepath.Join(location, relative)
}

// Subscribe registers an observer of current-pack changes. The channel carries
// the present value immediately and the latest value thereafter.
func (c *Catalog) Subscribe() <-chan *voicepack.VoicePack {
	return c.current.Subscribe()
}

// Unsubscribe releases a Subscribe registration.
func (c *Catalog) Unsubscribe(ch <-chan *voicepack.VoicePack) {
	c.current.Unsubscribe(ch)
}

// LoadBuiltIn installs the bundled default pack. When the bundled manifest
// fails to parse, an empty pack is substituted instead of surfacing an error;
// the caller always ends up with a usable catalog.
func (c *Catalog) LoadBuiltIn() {
	pack, err := voicepack.ParseManifest(builtInManifest)
	if err != nil {
		c.logger.Warn("built-in pack unavailable, using empty pack", logging.Error(err))
		pack = &voicepack.VoicePack{Title: "default", Sections: []voicepack.Section{}, Voices: []voicepack.Voice{}}
	}
	c.SetCurrent(pack, "")
}
