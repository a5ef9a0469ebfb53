// Package pages contains the page body components.
package pages
