package version

import (
	"strings"

	"github.com/ashourz/AlgoRoyale-sub002/pkg/errors"
	"github.com/Masterminds/semver/v3"
)

// Check reports whether the version of an artefact satisfies constraint. A leading
// "v" is ignored. Malformed versions and versions outside the range are
// ErrCodeVersionMismatch errors.
//
// Examples with constraint "^1":
//   - 1.0.0, 1.4.2 -> OK
//   - v1.2.0 -> OK
//   - 2.0.0 -> ERROR (major differs)
//   - 0.9.0 -> ERROR
func Check(kind, version, constraint string) error {
	v, err := semver.NewVersion(strings.TrimPrefix(version, "v"))
	if err != nil {
		return errors.Wrapf(errors.ErrCodeVersionMismatch, err, "invalid %s version %q", kind, version)
	}

	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeVersionMismatch, err, "invalid version constraint %q", constraint)
	}

	if !c.Check(v) {
		return errors.Newf(errors.ErrCodeVersionMismatch, "%s version %s does not satisfy %s", kind, version, constraint)
	}

	return nil
}
