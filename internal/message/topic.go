package message

import (
	"errors"
	"strings"
)

// maxTopicLength is the MQTT limit on UTF-8 encoded topic length.
const maxTopicLength = 65535

// Topic validation errors.
var (
	ErrEmptyTopic        = errors.New("topic cannot be empty")
	ErrTopicTooLong      = errors.New("topic exceeds 65535 bytes")
	ErrTopicNullChar     = errors.New("topic contains a null character")
	ErrWildcardInName    = errors.New("topic name cannot contain wildcards")
	ErrMalformedWildcard = errors.New("wildcard must occupy a whole level and # must be last")
)

// ValidateTopicName checks a topic used for publishing.
func ValidateTopicName(topic string) error {
	if err := validateCommon(topic); err != nil {
		return err
	}
	if strings.ContainsAny(topic, "+#") {
		return ErrWildcardInName
	}
	return nil
}

// ValidateTopicFilter checks a subscription filter, which may contain
// single-level (+) and multi-level (#) wildcards.
//
// Examples:
//
//	sensors/+/temperature  valid
//	sensors/#              valid
//	sensors/temp#          invalid
//	sensors/#/x            invalid
func ValidateTopicFilter(filter string) error {
	if err := validateCommon(filter); err != nil {
		return err
	}

	levels := strings.Split(filter, "/")
	for i, level := range levels {
		switch {
		case level == "#":
			if i != len(levels)-1 {
				return ErrMalformedWildcard
			}
		case level == "+":
		case strings.ContainsAny(level, "+#"):
			return ErrMalformedWildcard
		}
	}
	return nil
}

func validateCommon(topic string) error {
	switch {
	case topic == "":
		return ErrEmptyTopic
	case len(topic) > maxTopicLength:
		return ErrTopicTooLong
	case strings.ContainsRune(topic, 0):
		return ErrTopicNullChar
	}
	return nil
}
