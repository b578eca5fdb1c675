package folder

import (
	"maps"
	"time"
)

// Decorator carries per-request output options.
type Decorator struct {
	// AllowedContentTypes restricts visibility to these content types.
	// Empty means every content type is allowed.
	AllowedContentTypes []ContentType

	Properties map[string]string
}

func (d *Decorator) clone() *Decorator {
	if d == nil {
		return nil
	}
	c := &Decorator{Properties: maps.Clone(d.Properties)}
	if d.AllowedContentTypes != nil {
		c.AllowedContentTypes = append([]ContentType(nil), d.AllowedContentTypes...)
	}
	return c
}

// StorageParameters is the per-call context handed to every storage call:
// actor identity, timestamp for conditional updates, decorator options,
// collected warnings and a bag where storages keep their own per-call state
// (typically their open transaction).
//
// StorageParameters is not safe for concurrent use. Concurrent tasks get
// their own copy from a ParametersProvider.
type StorageParameters struct {
	session   *Session
	timestamp time.Time
	decorator *Decorator
	warnings  []Warning
	bag       map[string]any
}

// ParametersProvider returns a freshly constructed parameters copy.
type ParametersProvider func() *StorageParameters

// NewStorageParameters creates parameters for the given actor.
func NewStorageParameters(session *Session) *StorageParameters {
	return &StorageParameters{
		session: session,
		bag:     make(map[string]any),
	}
}

// Session returns the actor.
func (p *StorageParameters) Session() *Session {
	return p.session
}

// UserID is a shortcut for Session().UserID.
func (p *StorageParameters) UserID() int {
	if p.session == nil {
		return 0
	}
	return p.session.UserID
}

// Timestamp returns the timestamp used for conditional updates and for the
// last-modified stamp of written folders.
func (p *StorageParameters) Timestamp() time.Time {
	return p.timestamp
}

// SetTimestamp sets the operation timestamp.
func (p *StorageParameters) SetTimestamp(t time.Time) {
	p.timestamp = t
}

// Decorator returns the output options, possibly nil.
func (p *StorageParameters) Decorator() *Decorator {
	return p.decorator
}

// SetDecorator sets the output options.
func (p *StorageParameters) SetDecorator(d *Decorator) {
	p.decorator = d
}

// AllowedContentTypes returns the decorator restriction, if any.
func (p *StorageParameters) AllowedContentTypes() []ContentType {
	if p.decorator == nil {
		return nil
	}
	return p.decorator.AllowedContentTypes
}

// AddWarning records a non-fatal condition.
func (p *StorageParameters) AddWarning(w Warning) {
	p.warnings = append(p.warnings, w)
}

// Warnings returns the collected warnings.
func (p *StorageParameters) Warnings() []Warning {
	return p.warnings
}

// Parameter returns a value stored by a storage under key.
func (p *StorageParameters) Parameter(key string) (any, bool) {
	v, ok := p.bag[key]
	return v, ok
}

// PutParameter stores a storage-specific value.
func (p *StorageParameters) PutParameter(key string, value any) {
	p.bag[key] = value
}

// RemoveParameter deletes a storage-specific value.
func (p *StorageParameters) RemoveParameter(key string) {
	delete(p.bag, key)
}

// Provider returns a ParametersProvider producing copies that share the
// actor and timestamp of p but have their own decorator, warnings and
// storage bag.
func (p *StorageParameters) Provider() ParametersProvider {
	session := p.session
	timestamp := p.timestamp
	decorator := p.decorator.clone()

	return func() *StorageParameters {
		c := NewStorageParameters(session)
		c.timestamp = timestamp
		c.decorator = decorator.clone()
		return c
	}
}
