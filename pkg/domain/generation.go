package domain

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/yurykabanov/wpbackup/pkg/seal"
)

const (
	// Address of generation 0, older generations are suffixed with their index
	ContainerPrefix = "DAYJ"

	MarkerFile      = "date.txt"
	SiteArchiveFile = "wordpress.site.tar.gz"

	// Marker payload layout (ISO basic calendar date)
	DayLayout = "20060102"
)

// ContainerAddress maps generation index to its container name:
// 0 is "DAYJ", k is "DAYJ-k".
func ContainerAddress(generation int) string {
	if generation == 0 {
		return ContainerPrefix
	}

	return fmt.Sprintf("%s-%d", ContainerPrefix, generation)
}

// ParseContainerAddress is the inverse of ContainerAddress.
func ParseContainerAddress(name string) (int, bool) {
	if name == ContainerPrefix {
		return 0, true
	}

	suffix := strings.TrimPrefix(name, ContainerPrefix+"-")
	if suffix == name {
		return 0, false
	}

	generation, err := strconv.Atoi(suffix)
	if err != nil || generation <= 0 || strconv.Itoa(generation) != suffix {
		return 0, false
	}

	return generation, true
}

// ResolveGeneration checks that generation is inside the retention window
// and returns its address.
func ResolveGeneration(generation, retention int) (string, error) {
	if generation < 0 || generation >= retention {
		return "", &Error{
			Stage:   StageResolve,
			Kind:    KindResolution,
			Address: ContainerAddress(max(generation, 0)),
			Err:     errors.Errorf("generation %d is outside of retention window [0, %d]", generation, retention-1),
		}
	}

	return ContainerAddress(generation), nil
}

func DumpFile(database string) string {
	return database + ".sql.gz"
}

// Members lists unsealed member file names of a generation in the order
// they are produced, sealed and transferred.
func Members(database string) []string {
	return []string{DumpFile(database), SiteArchiveFile, MarkerFile}
}

func Sealed(name string) string {
	return name + seal.Suffix
}

// IsRotationDue reports whether a generation marked with markerDay has to be
// shifted before today's artifacts are written. Empty marker means the slot
// has never been completed.
func IsRotationDue(markerDay, today string) bool {
	return markerDay != "" && markerDay != today
}
