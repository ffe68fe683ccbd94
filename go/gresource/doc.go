// Package gresource turns dropped files and folders into a GResource XML manifest.
//
// Collection happens in two phases: the base directory is fixed from the first root, then every
// root is walked with an explicit accumulator. The manifest lists each collected file relative to
// that base, flagging images for pixdata preprocessing.
package gresource
