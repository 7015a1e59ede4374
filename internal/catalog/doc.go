// Package catalog holds the single current voice pack and broadcasts
// replacements to observers.
package catalog
