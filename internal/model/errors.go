// Package model holds the venue, seat and reservation types shared by the
// seat finder, the reservation store and the ticket service, together with
// the error kinds those layers report to callers.
package model

import "errors"

// ErrBadRequest covers invalid input and unknown or mismatched holds.  Its
// message never tells an unknown hold id apart from a wrong email.
var ErrBadRequest = errors.New("bad request")

// ErrNoSeatsAvailable is returned when fewer seats are free than requested.
// Callers may retry later.
var ErrNoSeatsAvailable = errors.New("no seats available")

// ErrExpired signals that a hold can no longer be confirmed.
var ErrExpired = errors.New("seat hold expired")

// ErrServiceNotReady is returned before a valid venue has been configured.
var ErrServiceNotReady = errors.New("service not ready")

// ErrInternal marks a broken contract inside the service, such as the
// finder assigning a seat twice.  Callers should not retry.
var ErrInternal = errors.New("internal error")
