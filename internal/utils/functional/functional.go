// Package functional holds small generic slice helpers.
package functional

// Map applies fn to each element of slice and returns the resulting slice.
func Map[T any, U any](slice []T, fn func(T) U) []U {
	result := make([]U, len(slice))
	for i, item := range slice {
		result[i] = fn(item)
	}
	return result
}

// Reverse returns a new slice with the elements of slice in reverse order.
func Reverse[T any](slice []T) []T {
	result := make([]T, len(slice))
	for i, item := range slice {
		result[len(slice)-1-i] = item
	}
	return result
}
