package wizard

import (
	"errors"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"onboarding-backend/internal/domains/onboarding"
	"onboarding-backend/internal/shared/utils"
)

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.]+$`)
	amountPattern   = regexp.MustCompile(`^\d+(\.\d{1,2})?$`)
)

// ========================================
// LOCAL RULES
// ========================================

func requiredIf(required bool, msg string) validation.Rule {
	return validation.When(required, validation.Required.Error(msg))
}

// localRule evaluates the cheap, synchronous rules of one field.
// A nil return means the field passes.
func localRule(flow *onboarding.Flow, fields onboarding.Fields, key onboarding.FieldKey) error {
	req := flow.IsRequired(key)
	label := onboarding.SpecOf(key).Label

	switch key {
	case onboarding.FieldFirstName, onboarding.FieldLastName:
		return validation.Validate(fields.Text(key),
			requiredIf(req, label+" is required"),
			validation.RuneLength(1, 50).Error(label+" must be at most 50 characters"),
		)

	case onboarding.FieldEmail:
		return validation.Validate(fields.Text(key),
			requiredIf(req, "Email is required"),
			is.EmailFormat.Error("Please enter a valid email address"),
			validation.Length(5, 255).Error("Email must be between 5 and 255 characters"),
		)

	case onboarding.FieldPhone:
		return validation.Validate(fields.Text(key),
			requiredIf(req, "Phone is required"),
			is.E164.Error("Phone must be in international format, e.g. +14155550123"),
		)

	case onboarding.FieldCountry:
		return validation.Validate(fields.Text(key),
			requiredIf(req, "Country is required"),
			validation.RuneLength(2, 56).Error("Please enter a valid country"),
		)

	case onboarding.FieldPassword:
		return validation.Validate(fields.Text(key),
			requiredIf(req, "Password is required"),
			validation.Length(8, 128).Error("Password must be 8-128 characters"),
		)

	case onboarding.FieldConfirmPassword:
		password := fields.Text(onboarding.FieldPassword)
		return validation.Validate(fields.Text(key),
			requiredIf(req, "Please confirm your password"),
			validation.By(func(value interface{}) error {
				if s, _ := value.(string); s != "" && s != password {
					return validation.NewError("validation_password_mismatch", "Passwords do not match")
				}
				return nil
			}),
		)

	case onboarding.FieldTermsAccepted:
		return validation.Validate(fields.Flag(key),
			requiredIf(req, "You must accept the terms to continue"),
		)

	case onboarding.FieldUsername:
		return validation.Validate(fields.Text(key),
			requiredIf(req, "Username is required"),
			validation.Length(3, 30).Error("Username must be between 3 and 30 characters"),
			validation.Match(usernamePattern).Error("Username may only contain letters, numbers, dots and underscores"),
		)

	case onboarding.FieldBio:
		return validation.Validate(fields.Text(key),
			requiredIf(req, "Bio is required"),
			validation.RuneLength(0, 500).Error("Bio must be at most 500 characters"),
		)

	case onboarding.FieldAge, onboarding.FieldAverageViews:
		n, ok := fields.Number(key)
		if !ok {
			if req {
				return validation.NewError("validation_required", label+" is required")
			}
			return nil
		}
		if key == onboarding.FieldAverageViews {
			return validation.Validate(n, validation.Min(int64(0)).Error("Average views cannot be negative"))
		}
		return validation.Validate(n,
			validation.Min(int64(13)).Error("You must be at least 13 years old"),
			validation.Max(int64(120)).Error("Please enter a valid age"),
		)

	case onboarding.FieldRegion:
		return validation.Validate(fields.Text(key),
			requiredIf(req, "Region is required"),
			validation.RuneLength(2, 100).Error("Please enter a valid region"),
		)

	case onboarding.FieldInterests:
		return validation.Validate(fields.List(key),
			requiredIf(req, "Choose at least one interest"),
			validation.Length(0, 10).Error("Choose at most 10 interests"),
			validation.Each(validation.Required.Error("Interests cannot be blank")),
		)

	case onboarding.FieldCategories:
		return validation.Validate(fields.List(key),
			requiredIf(req, "Choose at least one category"),
			validation.Length(0, 5).Error("Choose at most 5 categories"),
			validation.Each(validation.Required.Error("Categories cannot be blank")),
		)

	case onboarding.FieldProfilePicture:
		if _, ok := fields.Picture(key); !ok && req {
			return validation.NewError("validation_required", "Please upload a profile picture")
		}
		return nil

	case onboarding.FieldSocialLinks:
		return validateSocialLinks(fields.SocialLinks(key), req)

	case onboarding.FieldPortfolioLinks:
		links := make([]string, 0, len(fields.List(key)))
		for _, l := range fields.List(key) {
			links = append(links, utils.NormalizeURL(l))
		}
		return validation.Validate(links,
			requiredIf(req, "Add at least one portfolio link"),
			validation.Each(is.URL.Error("Portfolio links must be valid URLs")),
		)

	case onboarding.FieldRatePerPost:
		return validation.Validate(fields.Text(key),
			requiredIf(req, "Rate per post is required"),
			validation.Match(amountPattern).Error("Rate must be an amount like 150 or 150.50"),
		)

	case onboarding.FieldBrandName:
		return validation.Validate(fields.Text(key),
			requiredIf(req, "Brand name is required"),
			validation.RuneLength(2, 100).Error("Brand name must be 2-100 characters"),
		)

	case onboarding.FieldWebsite:
		return validation.Validate(utils.NormalizeURL(fields.Text(key)),
			requiredIf(req, "Website is required"),
			is.URL.Error("Please enter a valid website URL"),
		)

	case onboarding.FieldDescription:
		return validation.Validate(fields.Text(key),
			requiredIf(req, "Description is required"),
			validation.RuneLength(0, 1000).Error("Description must be at most 1000 characters"),
		)
	}
	return nil
}

// validateSocialLinks: at least one row with a URL when required, every
// URL valid after normalization, follower counts never negative
func validateSocialLinks(links []onboarding.SocialLinkRecord, required bool) error {
	withURL := 0
	for _, l := range links {
		if !l.HasURL() {
			continue
		}
		withURL++
		if err := validation.Validate(utils.NormalizeURL(l.URL), is.URL); err != nil {
			return validation.NewError("validation_social_url", "Please enter a valid URL for "+string(l.Platform))
		}
		if l.FollowersCount != nil && *l.FollowersCount < 0 {
			return validation.NewError("validation_followers", "Followers count cannot be negative")
		}
	}
	if required && withURL == 0 {
		return validation.NewError("validation_social_required", "Add at least one social link")
	}
	return nil
}

// errorMessage flattens an ozzo error into the text shown under a field
func errorMessage(err error) string {
	var ve validation.Error
	if errors.As(err, &ve) {
		return ve.Message()
	}
	var es validation.Errors
	if errors.As(err, &es) {
		for _, e := range es {
			return errorMessage(e)
		}
	}
	return err.Error()
}

// localErrorLocked returns the first local rule failure of key or ""
func (w *Wizard) localErrorLocked(key onboarding.FieldKey) string {
	if err := localRule(w.flow, w.fields, key); err != nil {
		return errorMessage(err)
	}
	return ""
}

// ========================================
// STEP GATE
// ========================================

// gateLocked evaluates every field of a step. Remote results are consulted
// only for fields whose local rules pass; unchecked remote fields are
// reported through the pending list instead of as errors.
func (w *Wizard) gateLocked(step int, withRemote bool) (errs map[onboarding.FieldKey]string, pending []onboarding.FieldKey) {
	errs = make(map[onboarding.FieldKey]string)
	for _, key := range w.flow.Steps[step].FieldKeys() {
		if msg := w.localErrorLocked(key); msg != "" {
			errs[key] = msg
			continue
		}
		if !withRemote || !w.needsRemote(key) {
			continue
		}
		res, ok := w.results[key]
		if !ok || res.value != w.fields.Text(key) {
			pending = append(pending, key)
			continue
		}
		if msg := res.message(key); msg != "" {
			errs[key] = msg
		}
	}
	return errs, pending
}

// needsRemote reports whether key has an availability rule to run
func (w *Wizard) needsRemote(key onboarding.FieldKey) bool {
	return onboarding.SpecOf(key).Remote && w.deps.Availability != nil && w.fields.Text(key) != ""
}
