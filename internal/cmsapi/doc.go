// Package cmsapi serves the content API: public page reads, bearer-gated
// edits and image uploads, login, and the uploaded files themselves.
package cmsapi
