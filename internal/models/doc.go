// Package models defines domain entities and persistence interfaces for the segx segmentation client.
//
// The package contains two categories of types:
//
// 1. Submission and job types: values that flow through the upload lifecycle
//   - [Modality] and [FileSlots] : the four required MRI volumes (T1, T1c, T2, FLAIR)
//   - [Identity] : the signed-in owner of a submission
//   - [UploadJob] : one submitted batch and its [JobState]
//   - [ProcessingEstimate] : synthetic five-phase progress
//   - [JobStatus], [StatusResponse], [JobResult] : the backend's wire types
//
// 2. Persistent entities: database-backed records
//   - [Report] : a completed job cached for history listing and export
//
// The Repository[T] interface defines standard CRUD operations for database access.
package models
