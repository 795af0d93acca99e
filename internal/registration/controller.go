// Copyright (c) 2025 Justin Cranford

package registration

import "context"

// Controller is the dispatcher of spec.md §4.3: it parses a bootstrap JSON
// string and hands off to whichever provider's shape matches.
type Controller struct {
	deps Deps
}

// NewController builds a Controller over the given capabilities.
func NewController(deps Deps) *Controller {
	return &Controller{deps: deps}
}

// Initiate implements spec.md §4.3's dispatch algorithm: attempt cloud
// construction first; on shape mismatch (not a network failure) attempt
// on-premise; if neither shape matches, fail with "invalid registration
// data".
func (c *Controller) Initiate(ctx context.Context, bootstrapJSON, accountName, pushToken string, additionalData map[string]string) (Provider, error) {
	if cloudBS, ok := parseCloudBootstrap([]byte(bootstrapJSON)); ok {
		provider := newCloudProvider(cloudBS, c.deps)
		if err := provider.Initiate(ctx, accountName, pushToken, additionalData); err != nil {
			return nil, err
		}

		return provider, nil
	}

	if onPremBS, ok := parseOnPremiseBootstrap([]byte(bootstrapJSON)); ok {
		provider := newOnPremiseProvider(onPremBS, c.deps)
		if err := provider.Initiate(ctx, accountName, pushToken, additionalData); err != nil {
			return nil, err
		}

		return provider, nil
	}

	return nil, errInvalidRegistrationData
}
