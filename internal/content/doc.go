// Package content stores page content as append-only key/value rows and
// rebuilds the current view of a page from them.
//
// Writes address a field with a qualified key "page.field". The part before
// the first dot names the page, the remainder is the field key and is kept
// as an opaque string, so "home.hero.title" is field "hero.title" on page
// "home". Every write inserts a new row; nothing is updated or deleted.
//
// Reads select a page's rows in ascending id order and let later rows
// overwrite earlier ones, so the most recent write of each field wins.
package content
