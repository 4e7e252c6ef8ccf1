package onboarding

// FlowID names one of the onboarding wizards
type FlowID string

const (
	FlowCreatorProfile FlowID = "creator_profile"
	FlowCreatorSignup  FlowID = "creator_signup"
	FlowBrandSignup    FlowID = "brand_signup"
)

// Step is one page of a wizard
type Step struct {
	Name     string
	Required []FieldKey
	Optional []FieldKey
}

// Flow is a linear sequence of steps submitted as one registration
type Flow struct {
	ID    FlowID
	Role  Role
	Steps []Step
	// RequiresAuth means the upstream account already exists and the
	// submission carries its bearer token
	RequiresAuth bool
	// SignUp flows create the account and emit the sign_up event
	SignUp bool
}

var accountStep = Step{
	Name: "account",
	Required: []FieldKey{
		FieldFirstName, FieldLastName, FieldEmail,
		FieldPassword, FieldConfirmPassword, FieldTermsAccepted,
	},
	Optional: []FieldKey{FieldPhone, FieldCountry},
}

var creatorProfileStep = Step{
	Name:     "profile",
	Required: []FieldKey{FieldUsername},
	Optional: []FieldKey{FieldBio},
}

var creatorDetailsStep = Step{
	Name:     "details",
	Required: []FieldKey{FieldAge, FieldRegion, FieldInterests},
	Optional: []FieldKey{FieldProfilePicture},
}

var flows = map[FlowID]*Flow{
	FlowCreatorProfile: {
		ID:           FlowCreatorProfile,
		Role:         RoleCreator,
		RequiresAuth: true,
		Steps: []Step{
			creatorProfileStep,
			creatorDetailsStep,
			{
				Name:     "reach",
				Required: []FieldKey{FieldSocialLinks},
				Optional: []FieldKey{FieldPortfolioLinks, FieldAverageViews, FieldRatePerPost},
			},
		},
	},
	FlowCreatorSignup: {
		ID:     FlowCreatorSignup,
		Role:   RoleCreator,
		SignUp: true,
		Steps: []Step{
			accountStep,
			creatorProfileStep,
			creatorDetailsStep,
			{Name: "socials", Required: []FieldKey{FieldSocialLinks}},
			{
				Name:     "portfolio",
				Optional: []FieldKey{FieldPortfolioLinks, FieldAverageViews, FieldRatePerPost},
			},
		},
	},
	FlowBrandSignup: {
		ID:     FlowBrandSignup,
		Role:   RoleBrand,
		SignUp: true,
		Steps: []Step{
			accountStep,
			{
				Name:     "brand",
				Required: []FieldKey{FieldBrandName, FieldWebsite},
				Optional: []FieldKey{FieldDescription},
			},
			{
				Name:     "categories",
				Required: []FieldKey{FieldCategories},
				Optional: []FieldKey{FieldSocialLinks},
			},
		},
	},
}

// LookupFlow returns the flow definition or ErrUnknownFlow
func LookupFlow(id FlowID) (*Flow, error) {
	f, ok := flows[id]
	if !ok {
		return nil, ErrUnknownFlow
	}
	return f, nil
}

func (f *Flow) StepCount() int {
	return len(f.Steps)
}

// StepOf returns the index of the step owning key
func (f *Flow) StepOf(key FieldKey) (int, bool) {
	for i, s := range f.Steps {
		for _, k := range s.Required {
			if k == key {
				return i, true
			}
		}
		for _, k := range s.Optional {
			if k == key {
				return i, true
			}
		}
	}
	return 0, false
}

// Owns reports whether key belongs to any step of the flow
func (f *Flow) Owns(key FieldKey) bool {
	_, ok := f.StepOf(key)
	return ok
}

func (f *Flow) IsRequired(key FieldKey) bool {
	for _, s := range f.Steps {
		for _, k := range s.Required {
			if k == key {
				return true
			}
		}
	}
	return false
}

// FieldKeys lists the keys of a step, required first
func (s Step) FieldKeys() []FieldKey {
	keys := make([]FieldKey, 0, len(s.Required)+len(s.Optional))
	keys = append(keys, s.Required...)
	return append(keys, s.Optional...)
}

// FieldKeys lists every key the flow collects in step order
func (f *Flow) FieldKeys() []FieldKey {
	var keys []FieldKey
	for _, s := range f.Steps {
		keys = append(keys, s.FieldKeys()...)
	}
	return keys
}

// DraftKeys lists every draft key a session of this flow can write
func (f *Flow) DraftKeys() []string {
	keys := []string{DraftKeyFlow, DraftKeyStep}
	for _, k := range f.FieldKeys() {
		if SpecOf(k).Persist {
			keys = append(keys, k.DraftKey())
		}
	}
	return keys
}
