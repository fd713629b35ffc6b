// Copyright © 2026 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

package command

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/staranto/shellcache/internal/manifest"
	"github.com/staranto/shellcache/internal/output"
)

// StoreFlagsValidator checks the flag combinations a store needs.
func StoreFlagsValidator(_ context.Context, c *cli.Command) error {
	if c.String("origin") == "" {
		return errors.New("--origin is required")
	}
	if c.String("bundle") == "" {
		return errors.New("--bundle is required")
	}
	if c.String("store") == StoreS3 && c.String("bucket") == "" {
		return errors.New("--bucket is required with --store=s3")
	}
	return nil
}

type FlagValidatorType func(any) error

func FlagValidators(value any, validators ...FlagValidatorType) error {
	for _, v := range validators {
		if err := v(value); err != nil {
			return err
		}
	}
	return nil
}

// JammedFlagValidator verifies that the arg following a flag does not begin
// with '--'.  urfave/cli allows this and I don't see how to turn it off.
func JammedFlagValidator(value any) error {
	if strings.HasPrefix(value.(string), "--") {
		return errors.New("must not begin with '--'")
	}
	return nil
}

func OutputValidator(value any) error {
	return oneOf(value, output.Formats)
}

func StoreValidator(value any) error {
	return oneOf(value, []string{StoreMemory, StoreDisk, StoreS3})
}

func OriginValidator(value any) error {
	if value.(string) == "" {
		return nil
	}
	_, err := manifest.NormalizeOrigin(value.(string))
	return err
}

func oneOf(value any, valid []string) error {
	s, _ := value.(string)
	if !slices.Contains(valid, s) {
		return fmt.Errorf("must be one of %v", valid)
	}
	return nil
}
