package config

import "time"

// DomainConfig holds all configurable business rules and constraints
type DomainConfig struct {
	// Node constraints
	MaxLabelLength int `yaml:"max_label_length"`
	MaxTagsPerNode int `yaml:"max_tags_per_node"`

	// Placement of nodes created next to a parent (or the origin)
	SpawnJitterX  float64 `yaml:"spawn_jitter_x"`
	SpawnOffsetY  float64 `yaml:"spawn_offset_y"`
	VideoSize     Size    `yaml:"video_size"`
	ImageSize     Size    `yaml:"image_size"`
	DocumentSize  Size    `yaml:"document_size"`
	DefaultLayout Size    `yaml:"default_layout_size"`

	// Health/decay thresholds
	NewNodeGrace    time.Duration `yaml:"new_node_grace"`
	ReviewDecay     time.Duration `yaml:"review_decay"`
	UnreviewedDecay time.Duration `yaml:"unreviewed_decay"`

	// Force-directed layout
	ForceTicks        int     `yaml:"force_ticks"`
	ForceChargeBase   float64 `yaml:"force_charge_base"`
	ForceChargePerW   float64 `yaml:"force_charge_per_weight"`
	ForceCollideBase  float64 `yaml:"force_collide_base"`
	ForceCollidePerW  float64 `yaml:"force_collide_per_weight"`
	ForceCollideIters int     `yaml:"force_collide_iterations"`
	ForceLinkDistance float64 `yaml:"force_link_distance"`

	// Hierarchical layout
	NodeSeparation float64 `yaml:"node_separation"`
	RankSeparation float64 `yaml:"rank_separation"`
	LayoutMargin   float64 `yaml:"layout_margin"`

	// Review
	FeynmanMinLength int           `yaml:"feynman_min_length"`
	MasteryInterval  time.Duration `yaml:"mastery_interval"`
	RelearnDelay     time.Duration `yaml:"relearn_delay"`
	MaxPathLength    int           `yaml:"max_path_length"`

	// Persistence
	PersistTimeout time.Duration `yaml:"persist_timeout"`
}

// Size is a width/height pair used for defaults
type Size struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// DefaultDomainConfig returns the default domain configuration
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		MaxLabelLength: 200,
		MaxTagsPerNode: 20,

		SpawnJitterX:  100,
		SpawnOffsetY:  150,
		VideoSize:     Size{Width: 480, Height: 320},
		ImageSize:     Size{Width: 320, Height: 320},
		DocumentSize:  Size{Width: 420, Height: 560},
		DefaultLayout: Size{Width: 280, Height: 150},

		NewNodeGrace:    24 * time.Hour,
		ReviewDecay:     7 * 24 * time.Hour,
		UnreviewedDecay: 168 * time.Hour,

		ForceTicks:        300,
		ForceChargeBase:   500,
		ForceChargePerW:   50,
		ForceCollideBase:  100,
		ForceCollidePerW:  10,
		ForceCollideIters: 3,
		ForceLinkDistance: 200,

		NodeSeparation: 60,
		RankSeparation: 100,
		LayoutMargin:   50,

		FeynmanMinLength: 20,
		MasteryInterval:  21 * 24 * time.Hour,
		RelearnDelay:     10 * time.Minute,
		MaxPathLength:    8,

		PersistTimeout: 10 * time.Second,
	}
}

// Validate fills zero values with defaults so partial overrides stay usable
func (c *DomainConfig) Validate() *DomainConfig {
	d := DefaultDomainConfig()
	if c.MaxLabelLength <= 0 {
		c.MaxLabelLength = d.MaxLabelLength
	}
	if c.MaxTagsPerNode <= 0 {
		c.MaxTagsPerNode = d.MaxTagsPerNode
	}
	if c.SpawnJitterX <= 0 {
		c.SpawnJitterX = d.SpawnJitterX
	}
	if c.SpawnOffsetY == 0 {
		c.SpawnOffsetY = d.SpawnOffsetY
	}
	if c.DefaultLayout.Width <= 0 || c.DefaultLayout.Height <= 0 {
		c.DefaultLayout = d.DefaultLayout
	}
	if c.NewNodeGrace <= 0 {
		c.NewNodeGrace = d.NewNodeGrace
	}
	if c.ReviewDecay <= 0 {
		c.ReviewDecay = d.ReviewDecay
	}
	if c.UnreviewedDecay <= 0 {
		c.UnreviewedDecay = d.UnreviewedDecay
	}
	if c.ForceTicks <= 0 {
		c.ForceTicks = d.ForceTicks
	}
	if c.ForceCollideIters <= 0 {
		c.ForceCollideIters = d.ForceCollideIters
	}
	if c.ForceLinkDistance <= 0 {
		c.ForceLinkDistance = d.ForceLinkDistance
	}
	if c.FeynmanMinLength <= 0 {
		c.FeynmanMinLength = d.FeynmanMinLength
	}
	if c.MasteryInterval <= 0 {
		c.MasteryInterval = d.MasteryInterval
	}
	if c.MaxPathLength <= 0 {
		c.MaxPathLength = d.MaxPathLength
	}
	if c.PersistTimeout <= 0 {
		c.PersistTimeout = d.PersistTimeout
	}
	return c
}
