// Package upload accepts image uploads, names them uniquely and stores them
// on local disk or in S3. Stored objects are served back under /uploads/.
package upload
