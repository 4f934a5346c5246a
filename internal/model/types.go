package model

type TrackKind string

const (
	TrackVideo TrackKind = "video"
	TrackAudio TrackKind = "audio"
)

type ItemKind string

const (
	ItemVideo    ItemKind = "video"
	ItemPlaylist ItemKind = "playlist"
)

type AuthMode string

const (
	AuthCookies AuthMode = "cookies"
	AuthNone    AuthMode = "none"
)

type Outcome string

const (
	OutcomeSuccess     Outcome = "success"
	OutcomeRecoverable Outcome = "recoverable"
	OutcomeFatal       Outcome = "fatal"
)

// Track is one probed media stream. Muxed tracks are video tracks that also
// report an audio codec. Original marks the original-language audio of an
// item that also offers dubbed tracks.
type Track struct {
	FormatID           string    `json:"format_id"`
	Kind               TrackKind `json:"kind"`
	VideoCodec         string    `json:"video_codec,omitempty"`
	AudioCodec         string    `json:"audio_codec,omitempty"`
	ContainerHint      string    `json:"container_hint,omitempty"`
	Resolution         int       `json:"resolution,omitempty"`
	EstimatedSize      int64     `json:"estimated_size,omitempty"`
	BitrateKbps        float64   `json:"bitrate_kbps,omitempty"`
	Language           string    `json:"language,omitempty"`
	LanguagePreference int       `json:"language_preference,omitempty"`
	Original           bool      `json:"original,omitempty"`
	Muxed              bool      `json:"muxed,omitempty"`
}

type TrackCatalog struct {
	ItemID          string   `json:"item_id"`
	ItemKind        ItemKind `json:"item_kind"`
	Title           string   `json:"title,omitempty"`
	DurationSeconds float64  `json:"duration_seconds,omitempty"`
	Tracks          []Track  `json:"tracks"`
	SourceClient    string   `json:"source_client,omitempty"`
}

func (c TrackCatalog) Track(formatID string) (Track, bool) {
	for _, t := range c.Tracks {
		if t.FormatID == formatID {
			return t, true
		}
	}
	return Track{}, false
}

// QualityProfile is one ranked download candidate. ExtraAudioTrackRefs are
// further language tracks muxed in after AudioTrackRef.
type QualityProfile struct {
	Rank                int      `json:"rank"`
	Label               string   `json:"label"`
	Container           string   `json:"container"`
	VideoTrackRef       string   `json:"video_track_ref"`
	AudioTrackRef       string   `json:"audio_track_ref,omitempty"`
	ExtraAudioTrackRefs []string `json:"extra_audio_track_refs,omitempty"`
	VideoClass          string   `json:"video_class"`
	AudioClass          string   `json:"audio_class"`
	Height              int      `json:"height,omitempty"`
	FormatSelector      string   `json:"format_selector"`
	EstimatedSize       int64    `json:"estimated_size,omitempty"`
}

// ClientIdentity is an upstream client variant passed to yt-dlp through
// ExtraArguments.
type ClientIdentity struct {
	Name           string   `json:"name"`
	ExtraArguments []string `json:"extra_arguments,omitempty"`
}

type Attempt struct {
	RunID          string   `json:"run_id,omitempty"`
	ProfileRank    int      `json:"profile_rank"`
	ProfileLabel   string   `json:"profile_label,omitempty"`
	FormatSelector string   `json:"format_selector,omitempty"`
	ClientName     string   `json:"client_name"`
	AuthMode       AuthMode `json:"auth_mode"`
	Outcome        Outcome  `json:"outcome"`
	Reason         string   `json:"reason,omitempty"`
	ExitCode       int      `json:"exit_code"`
	Error          string   `json:"error,omitempty"`
	Timestamp      string   `json:"timestamp"`
	DurationMS     int64    `json:"duration_ms"`
}

// JobState is the per-item job.json document. SkipLeaves lists the leaf keys
// a cancelled run already tried; the next run starts after them.
type JobState struct {
	SchemaVersion       int       `json:"schema_version"`
	ItemID              string    `json:"item_id"`
	Platform            string    `json:"platform,omitempty"`
	SourceURL           string    `json:"source_url"`
	IntendedOutputName  string    `json:"intended_output_name,omitempty"`
	RunID               string    `json:"run_id,omitempty"`
	Status              string    `json:"status"`
	Reason              string    `json:"reason,omitempty"`
	LastError           string    `json:"last_error,omitempty"`
	Attempts            []Attempt `json:"attempts"`
	SelectedProfileRank *int      `json:"selected_profile_rank"`
	SuccessfulClient    *string   `json:"successful_client"`
	Resumed             bool      `json:"resumed,omitempty"`
	FinalArtifact       string    `json:"final_artifact,omitempty"`
	DeliveredTo         string    `json:"delivered_to,omitempty"`
	SkipLeaves          []string  `json:"skip_leaves,omitempty"`
	CreatedAt           string    `json:"created_at,omitempty"`
	UpdatedAt           string    `json:"updated_at,omitempty"`
	CompletedAt         string    `json:"completed_at,omitempty"`
}

func (j JobState) AttemptsForRun(runID string) []Attempt {
	out := make([]Attempt, 0, len(j.Attempts))
	for _, a := range j.Attempts {
		if a.RunID == runID {
			out = append(out, a)
		}
	}
	return out
}

// LeafKey identifies one (profile, client, auth) combination. Profiles are
// keyed by format selector because ranks can shift when a catalog is
// re-probed.
func LeafKey(selector, client string, auth AuthMode) string {
	return selector + "/" + client + "/" + string(auth)
}

func (a Attempt) LeafKey() string {
	return LeafKey(a.FormatSelector, a.ClientName, a.AuthMode)
}
