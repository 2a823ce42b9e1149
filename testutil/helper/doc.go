// Package helper provides test doubles and fixtures shared by the venuestore test suites.
package helper
