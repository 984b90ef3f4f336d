// Package content defines the artifacts a content run produces.
//
// A run starts from a Brief and yields a Package holding the accepted
// artifacts: one BlogArticle, three SocialPost sets (developer and creator
// variants for X, plus LinkedIn) and a list of ImageAsset values.
//
// # Artifacts
//
// Artifact is a closed union over *BlogArticle, *SocialPost and *ImageAsset.
// Every artifact carries a ContentID assigned at creation from the product
// slug, the artifact type and the run timestamp. The ContentID is the key
// for the history collection and for performance analytics.
//
// Validate on each type checks structure only (required fields, enumerated
// values). Brand and length rules live in the guardrails package.
package content
