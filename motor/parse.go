package motor

import (
	"strconv"
	"strings"
)

const errorPrefix = "ERROR"

func parseDevice(line string) error {
	if strings.HasPrefix(line, errorPrefix) {
		return &DeviceError{Message: line}
	}
	return nil
}

// ParsePosition parses a "POS <int>" response.
func ParsePosition(line string) (int64, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "POS ") {
		return 0, &UnexpectedResponseError{Line: line}
	}
	pos, err := strconv.ParseInt(strings.TrimSpace(line[4:]), 10, 64)
	if err != nil {
		return 0, &UnexpectedResponseError{Line: line}
	}
	return pos, nil
}
