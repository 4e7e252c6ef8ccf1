package onboarding

import (
	"sort"
	"strings"
	"unicode"
)

type FieldKey string

const (
	FieldFirstName       FieldKey = "firstName"
	FieldLastName        FieldKey = "lastName"
	FieldEmail           FieldKey = "email"
	FieldPhone           FieldKey = "phone"
	FieldCountry         FieldKey = "country"
	FieldPassword        FieldKey = "password"
	FieldConfirmPassword FieldKey = "confirmPassword"
	FieldTermsAccepted   FieldKey = "termsAccepted"
	FieldUsername        FieldKey = "username"
	FieldBio             FieldKey = "bio"
	FieldAge             FieldKey = "age"
	FieldRegion          FieldKey = "region"
	FieldInterests       FieldKey = "interests"
	FieldProfilePicture  FieldKey = "profilePicture"
	FieldSocialLinks     FieldKey = "socialLinks"
	FieldPortfolioLinks  FieldKey = "portfolioLinks"
	FieldAverageViews    FieldKey = "averageViews"
	FieldRatePerPost     FieldKey = "ratePerPost"
	FieldBrandName       FieldKey = "brandName"
	FieldWebsite         FieldKey = "website"
	FieldDescription     FieldKey = "description"
	FieldCategories      FieldKey = "categories"
)

// Draft keys that are not fields
const (
	DraftKeyStep = "onboarding_step"
	DraftKeyFlow = "onboarding_flow"
)

const draftKeyPrefix = "onboarding_"

// FieldSpec describes how a field is typed, persisted and submitted
type FieldSpec struct {
	Kind Kind
	// FormName is the multipart form name; empty means never submitted
	FormName string
	// Persist is false for secrets that must not reach the draft store
	Persist bool
	// Remote marks fields with an availability check
	Remote bool
	Label  string
}

var fieldSpecs = map[FieldKey]FieldSpec{
	FieldFirstName:       {Kind: KindText, FormName: "first_name", Persist: true, Label: "First name"},
	FieldLastName:        {Kind: KindText, FormName: "last_name", Persist: true, Label: "Last name"},
	FieldEmail:           {Kind: KindText, FormName: "email", Persist: true, Remote: true, Label: "Email"},
	FieldPhone:           {Kind: KindText, FormName: "phone", Persist: true, Label: "Phone"},
	FieldCountry:         {Kind: KindText, FormName: "country", Persist: true, Label: "Country"},
	FieldPassword:        {Kind: KindText, FormName: "password", Label: "Password"},
	FieldConfirmPassword: {Kind: KindText, Label: "Confirm password"},
	FieldTermsAccepted:   {Kind: KindFlag, FormName: "terms_accepted", Persist: true, Label: "Terms"},
	FieldUsername:        {Kind: KindText, FormName: "username", Persist: true, Remote: true, Label: "Username"},
	FieldBio:             {Kind: KindText, FormName: "bio", Persist: true, Label: "Bio"},
	FieldAge:             {Kind: KindNumber, FormName: "age", Persist: true, Label: "Age"},
	FieldRegion:          {Kind: KindText, FormName: "region", Persist: true, Label: "Region"},
	FieldInterests:       {Kind: KindList, FormName: "interests", Persist: true, Label: "Interests"},
	FieldProfilePicture:  {Kind: KindPicture, FormName: "profile_picture", Persist: true, Label: "Profile picture"},
	FieldSocialLinks:     {Kind: KindSocialLinks, FormName: "social_links", Persist: true, Label: "Social links"},
	FieldPortfolioLinks:  {Kind: KindList, FormName: "portfolio_links", Persist: true, Label: "Portfolio links"},
	FieldAverageViews:    {Kind: KindNumber, FormName: "average_views", Persist: true, Label: "Average views"},
	FieldRatePerPost:     {Kind: KindText, FormName: "rate_per_post", Persist: true, Label: "Rate per post"},
	FieldBrandName:       {Kind: KindText, FormName: "brand_name", Persist: true, Label: "Brand name"},
	FieldWebsite:         {Kind: KindText, FormName: "website", Persist: true, Label: "Website"},
	FieldDescription:     {Kind: KindText, FormName: "description", Persist: true, Label: "Description"},
	FieldCategories:      {Kind: KindList, FormName: "categories", Persist: true, Label: "Categories"},
}

var formNames = func() map[string]FieldKey {
	m := make(map[string]FieldKey, len(fieldSpecs))
	for k, spec := range fieldSpecs {
		if spec.FormName != "" {
			m[spec.FormName] = k
		}
	}
	return m
}()

// FieldByFormName maps a multipart form name back to its key
func FieldByFormName(name string) (FieldKey, bool) {
	k, ok := formNames[name]
	return k, ok
}

// ParseFieldKey rejects keys outside the closed set
func ParseFieldKey(s string) (FieldKey, error) {
	k := FieldKey(s)
	if _, ok := fieldSpecs[k]; !ok {
		return "", ErrUnknownField
	}
	return k, nil
}

// SpecOf returns the registry entry of a known key
func SpecOf(k FieldKey) FieldSpec {
	return fieldSpecs[k]
}

// AllFieldKeys lists every known key in a stable order
func AllFieldKeys() []FieldKey {
	keys := make([]FieldKey, 0, len(fieldSpecs))
	for k := range fieldSpecs {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// DraftKey is the stable draft store key of a field
func (k FieldKey) DraftKey() string {
	return draftKeyPrefix + string(k)
}

// fieldKeywords is ordered: more specific words come first so "username"
// is not claimed by "name" and "brand name" not by "name". Each word must
// start a word of the message, so "age" never matches "average".
var fieldKeywords = []struct {
	word string
	key  FieldKey
}{
	{"username", FieldUsername},
	{"user name", FieldUsername},
	{"handle", FieldUsername},
	{"bio", FieldBio},
	{"picture", FieldProfilePicture},
	{"photo", FieldProfilePicture},
	{"avatar", FieldProfilePicture},
	{"image", FieldProfilePicture},
	{"average", FieldAverageViews},
	{"engagement", FieldAverageViews},
	{"age", FieldAge},
	{"region", FieldRegion},
	{"interest", FieldInterests},
	{"metric", FieldAverageViews},
	{"views", FieldAverageViews},
	{"rate", FieldRatePerPost},
	{"portfolio", FieldPortfolioLinks},
	{"social", FieldSocialLinks},
	{"brand", FieldBrandName},
	{"website", FieldWebsite},
	{"description", FieldDescription},
	{"categor", FieldCategories},
	{"email", FieldEmail},
	{"confirm", FieldConfirmPassword},
	{"password", FieldPassword},
	{"phone", FieldPhone},
	{"country", FieldCountry},
	{"first", FieldFirstName},
	{"last", FieldLastName},
	{"terms", FieldTermsAccepted},
	{"name", FieldFirstName},
}

// MatchFieldKeyword finds the field a free-text error message talks about.
// Fallback only: structured field names from the API are preferred.
func MatchFieldKeyword(msg string) (FieldKey, bool) {
	words := strings.FieldsFunc(strings.ToLower(msg), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	padded := " " + strings.Join(words, " ")
	for _, kw := range fieldKeywords {
		if strings.Contains(padded, " "+kw.word) {
			return kw.key, true
		}
	}
	return "", false
}
