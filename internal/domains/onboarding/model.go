package onboarding

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ========================================
// FIELD VALUES
// ========================================

// Kind tags the shape of a field value
type Kind string

const (
	KindText        Kind = "text"
	KindNumber      Kind = "number"
	KindFlag        Kind = "flag"
	KindList        Kind = "list"
	KindSocialLinks Kind = "social_links"
	KindPicture     Kind = "picture"
)

// Value is the closed union of field values. Only this package implements it.
type Value interface {
	Kind() Kind
	isValue()
}

type Text string

type Number int64

type Flag bool

// List is an ordered list of strings (interests, categories, portfolio URLs)
type List []string

// SocialLinks is the ordered list of social accounts entered by a creator
type SocialLinks []SocialLinkRecord

// Picture references a staged profile picture in the object store
type Picture struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
}

func (Text) Kind() Kind        { return KindText }
func (Number) Kind() Kind      { return KindNumber }
func (Flag) Kind() Kind        { return KindFlag }
func (List) Kind() Kind        { return KindList }
func (SocialLinks) Kind() Kind { return KindSocialLinks }
func (Picture) Kind() Kind     { return KindPicture }

func (Text) isValue()        {}
func (Number) isValue()      {}
func (Flag) isValue()        {}
func (List) isValue()        {}
func (SocialLinks) isValue() {}
func (Picture) isValue()     {}

// MarshalJSON writes an empty list as [] rather than null
func (l List) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(l))
}

func (s SocialLinks) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]SocialLinkRecord(s))
}

// ========================================
// SOCIAL LINKS
// ========================================

type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformTikTok    Platform = "tiktok"
	PlatformYouTube   Platform = "youtube"
	PlatformSnapchat  Platform = "snapchat"
	PlatformTwitch    Platform = "twitch"
	PlatformTwitter   Platform = "twitter"
	PlatformFacebook  Platform = "facebook"
	PlatformLinkedIn  Platform = "linkedin"
	PlatformOther     Platform = "other"
)

// ParsePlatform maps any unrecognized platform name to PlatformOther
func ParsePlatform(s string) Platform {
	switch p := Platform(strings.ToLower(strings.TrimSpace(s))); p {
	case PlatformInstagram, PlatformTikTok, PlatformYouTube, PlatformSnapchat,
		PlatformTwitch, PlatformTwitter, PlatformFacebook, PlatformLinkedIn:
		return p
	case "x":
		return PlatformTwitter
	default:
		return PlatformOther
	}
}

func (p *Platform) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*p = ParsePlatform(s)
	return nil
}

// SocialLinkRecord is one social account row
type SocialLinkRecord struct {
	Platform       Platform `json:"platform"`
	URL            string   `json:"url"`
	FollowersCount *int64   `json:"followersCount"`
}

// UnmarshalJSON accepts followersCount as a number, a numeric string, "" or null
func (r *SocialLinkRecord) UnmarshalJSON(data []byte) error {
	var raw struct {
		Platform       Platform        `json:"platform"`
		URL            string          `json:"url"`
		FollowersCount json.RawMessage `json:"followersCount"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Platform == "" {
		raw.Platform = PlatformOther
	}

	r.Platform = raw.Platform
	r.URL = raw.URL
	r.FollowersCount = nil

	count := strings.TrimSpace(string(raw.FollowersCount))
	if count == "" || count == "null" || count == `""` {
		return nil
	}
	count = strings.Trim(count, `"`)
	n, err := strconv.ParseInt(strings.TrimSpace(count), 10, 64)
	if err != nil {
		return fmt.Errorf("followersCount: %w", err)
	}
	r.FollowersCount = &n
	return nil
}

// HasURL reports whether the record carries a non-blank URL
func (r SocialLinkRecord) HasURL() bool {
	return strings.TrimSpace(r.URL) != ""
}

// ========================================
// FIELDS
// ========================================

// Fields is the flat field set of a wizard
type Fields map[FieldKey]Value

// Clone returns a deep copy so snapshots never alias wizard state
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		switch tv := v.(type) {
		case List:
			list := make(List, len(tv))
			copy(list, tv)
			out[k] = list
		case SocialLinks:
			links := make(SocialLinks, len(tv))
			for i, r := range tv {
				links[i] = r
				if r.FollowersCount != nil {
					n := *r.FollowersCount
					links[i].FollowersCount = &n
				}
			}
			out[k] = links
		default:
			out[k] = v
		}
	}
	return out
}

func (f Fields) Text(k FieldKey) string {
	v, _ := f[k].(Text)
	return string(v)
}

func (f Fields) Number(k FieldKey) (int64, bool) {
	v, ok := f[k].(Number)
	return int64(v), ok
}

func (f Fields) Flag(k FieldKey) bool {
	v, _ := f[k].(Flag)
	return bool(v)
}

func (f Fields) List(k FieldKey) []string {
	v, _ := f[k].(List)
	return v
}

func (f Fields) SocialLinks(k FieldKey) []SocialLinkRecord {
	v, _ := f[k].(SocialLinks)
	return v
}

func (f Fields) Picture(k FieldKey) (Picture, bool) {
	v, ok := f[k].(Picture)
	return v, ok
}

// DecodeValue decodes raw JSON into the value kind registered for a field
func DecodeValue(kind Kind, raw []byte) (Value, error) {
	switch kind {
	case KindText:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return Text(s), nil
	case KindNumber:
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			// Form inputs send numbers as strings
			var s string
			if err2 := json.Unmarshal(raw, &s); err2 != nil {
				return nil, err
			}
			n = json.Number(strings.TrimSpace(s))
		}
		i, err := n.Int64()
		if err != nil {
			return nil, err
		}
		return Number(i), nil
	case KindFlag:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, err
		}
		return Flag(b), nil
	case KindList:
		var l []string
		if err := json.Unmarshal(raw, &l); err != nil {
			return nil, err
		}
		return List(l), nil
	case KindSocialLinks:
		var s []SocialLinkRecord
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return SocialLinks(s), nil
	case KindPicture:
		var p Picture
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		if p.Key == "" {
			return nil, fmt.Errorf("picture without key")
		}
		return p, nil
	}
	return nil, fmt.Errorf("unknown kind %q", kind)
}

// ========================================
// WIZARD STATE
// ========================================

type SubmissionStatus string

const (
	StatusIdle       SubmissionStatus = "idle"
	StatusSubmitting SubmissionStatus = "submitting"
	StatusSucceeded  SubmissionStatus = "succeeded"
	StatusFailed     SubmissionStatus = "failed"
)

type Role string

const (
	RoleCreator Role = "creator"
	RoleBrand   Role = "brand"
)

// State is an immutable snapshot of a wizard
type State struct {
	SessionID        string
	Flow             FlowID
	Role             Role
	CurrentStep      int
	StepCount        int
	StepName         string
	Fields           Fields
	FieldErrors      map[FieldKey]string
	SubmissionStatus SubmissionStatus
	Notice           string
	PendingChecks    []FieldKey
}
