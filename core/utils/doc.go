// Package utils provides common helpers for the payment-reconciler application.
// It includes parsing of monetary values and request parameters, and calendar-date
// arithmetic shared by the matcher and the HTTP/CLI surfaces.
package utils
