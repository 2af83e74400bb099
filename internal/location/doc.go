// Package location manages the acquisition and release of periodic location
// fixes from a platform location service.
//
// The platform is abstracted behind Source. A Subscriber owns at most one
// Subscription at a time; permission absence leaves it idle without error.
package location
