// Package crawler defines the journal, volume, and contact types shared by
// discovery, extraction, the pipeline, and result persistence, together with
// the capability interfaces those subsystems depend on.
package crawler
