// Package bridge declares the collaborators the profile engine calls but does
// not implement: base definition resolution, an alternate text syntax, and
// translation to another schema language.
//
// Implementations are handed to the engine through a Context owned by the
// caller. Nothing in this package keeps process-wide state.
package bridge

import (
	"context"
	"errors"

	"github.com/goccy/go-json"
)

// ErrUnavailable is returned when a Context has no collaborator for a call.
var ErrUnavailable = errors.New("collaborator not configured")

// ErrNotFound is returned by resolvers that do not know a canonical URL.
var ErrNotFound = errors.New("definition not found")

// BaseResolver supplies the StructureDefinition JSON a profile constrains.
// version may be empty, meaning any version.
type BaseResolver interface {
	ResolveBase(ctx context.Context, canonicalURL, version string) ([]byte, error)
}

// AlternateSyntax parses and renders a textual profile language.
type AlternateSyntax interface {
	// Parse returns the StructureDefinitions described by text.
	Parse(ctx context.Context, text string) ([]json.RawMessage, error)
	// Render returns the text form of a StructureDefinition carrying a snapshot.
	Render(ctx context.Context, snapshot []byte) (string, error)
}

// SchemaTranslator converts a canonical StructureDefinition into another
// schema representation.
type SchemaTranslator interface {
	Translate(ctx context.Context, canonical []byte) ([]byte, error)
}

// ResolverFunc adapts a function to BaseResolver.
type ResolverFunc func(ctx context.Context, canonicalURL, version string) ([]byte, error)

// ResolveBase calls f.
func (f ResolverFunc) ResolveBase(ctx context.Context, canonicalURL, version string) ([]byte, error) {
	return f(ctx, canonicalURL, version)
}

// TranslatorFunc adapts a function to SchemaTranslator.
type TranslatorFunc func(ctx context.Context, canonical []byte) ([]byte, error)

// Translate calls f.
func (f TranslatorFunc) Translate(ctx context.Context, canonical []byte) ([]byte, error) {
	return f(ctx, canonical)
}

// Context carries the collaborators of one engine instance. Any field may be
// nil; calls needing a missing collaborator return ErrUnavailable.
type Context struct {
	FHIRVersion string
	Resolver    BaseResolver
	Syntax      AlternateSyntax
	Translator  SchemaTranslator
}

// ResolveBase resolves a base definition through the configured resolver.
func (c *Context) ResolveBase(ctx context.Context, canonicalURL, version string) ([]byte, error) {
	if c == nil || c.Resolver == nil {
		return nil, ErrUnavailable
	}
	return c.Resolver.ResolveBase(ctx, canonicalURL, version)
}

// ParseSyntax parses alternate syntax text.
func (c *Context) ParseSyntax(ctx context.Context, text string) ([]json.RawMessage, error) {
	if c == nil || c.Syntax == nil {
		return nil, ErrUnavailable
	}
	return c.Syntax.Parse(ctx, text)
}

// RenderSyntax renders a snapshot document as alternate syntax text.
func (c *Context) RenderSyntax(ctx context.Context, snapshot []byte) (string, error) {
	if c == nil || c.Syntax == nil {
		return "", ErrUnavailable
	}
	return c.Syntax.Render(ctx, snapshot)
}

// Translate converts a canonical export through the configured translator.
func (c *Context) Translate(ctx context.Context, canonical []byte) ([]byte, error) {
	if c == nil || c.Translator == nil {
		return nil, ErrUnavailable
	}
	return c.Translator.Translate(ctx, canonical)
}
