// Package templates holds the page layout and the markup shared by the page
// components. Components are written in .templ files; the _templ.go files
// are generated with `go tool templ generate`.
package templates
