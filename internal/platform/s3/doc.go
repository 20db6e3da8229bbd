// Package s3 uploads run artifacts to S3-compatible object storage.
//
// Any endpoint speaking the S3 protocol works (AWS, MinIO, Ceph RGW); a
// custom endpoint switches the client to path-style addressing.
package s3
