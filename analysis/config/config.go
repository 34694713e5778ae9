// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"os"
	"path"
	"regexp"
	"strings"

	"github.com/awslabs/ar-dex-tools/internal/funcutil"
	"gopkg.in/yaml.v3"
)

var (
	// The global config file
	configFile string
)

// SetGlobalConfig sets the global config filename
func SetGlobalConfig(filename string) {
	configFile = filename
}

// LoadGlobal loads the config file that has been set by SetGlobalConfig
func LoadGlobal() (*Config, error) {
	return Load(configFile)
}

// Config contains the options of the access path analyses together with the list of methods
// that should be treated as immutable getters.
// To add elements to a config file, add fields to this struct.
// If some field is not defined in the config file, it will be empty/zero in the struct.
// private fields are not populated from a yaml file, but computed after initialization
type Config struct {
	Options

	sourceFile string

	// if the ClassFilter is specified
	classFilterRegex *regexp.Regexp

	// ImmutableGetters lists the methods whose return value is an immutable subcomponent of
	// their receiver
	ImmutableGetters []MethodIdentifier `yaml:"immutable-getters"`
}

// Options holds the global options of the tool
type Options struct {
	// ClassFilter restricts the analysis tools to the methods whose class matches the filter
	ClassFilter string `yaml:"class-filter"`

	// MaxPathLength bounds the number of getter calls in a tracked access path. Paths that would
	// grow beyond the bound are widened to unknown.
	// If provided MaxPathLength is <= 0, then the default is used.
	MaxPathLength int `yaml:"max-path-length"`

	// TrackLocals enables tracking objects allocated in the method body in addition to the
	// method parameters
	TrackLocals bool `yaml:"track-locals"`

	// MaxFixpointIters bounds the number of passes of the fixpoint iteration over one method
	// body. When the bound is reached the remaining state is widened to unknown.
	// If provided MaxFixpointIters is <= 0, then the default is used.
	MaxFixpointIters int `yaml:"max-fixpoint-iterations"`

	// LogLevel controls the verbosity of the tool
	LogLevel int `yaml:"log-level"`

	// Suppress warnings
	SilenceWarn bool `yaml:"silence-warn"`
}

// NewDefault returns an empty default config.
func NewDefault() *Config {
	return &Config{
		sourceFile:       "",
		ImmutableGetters: nil,
		Options: Options{
			ClassFilter:      "",
			MaxPathLength:    DefaultMaxPathLength,
			TrackLocals:      false,
			MaxFixpointIters: DefaultMaxFixpointIters,
			LogLevel:         int(InfoLevel),
			SilenceWarn:      false,
		},
	}
}

// Load reads a configuration from a file
func Load(filename string) (*Config, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}
	return LoadBytes(filename, b)
}

// LoadBytes reads a configuration from yaml data. The filename is recorded as the origin of the
// configuration so that [Config.RelPath] can resolve paths relative to it.
func LoadBytes(filename string, b []byte) (*Config, error) {
	cfg := NewDefault()
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("could not unmarshal config file: %w", err)
	}

	cfg.sourceFile = filename

	// If logLevel has not been specified (i.e. it is 0) set the default to Info
	if cfg.LogLevel == 0 {
		cfg.LogLevel = int(InfoLevel)
	}

	// Set the MaxPathLength default if it is <= 0
	if cfg.MaxPathLength <= 0 {
		cfg.MaxPathLength = DefaultMaxPathLength
	}

	// Set the MaxFixpointIters default if it is <= 0
	if cfg.MaxFixpointIters <= 0 {
		cfg.MaxFixpointIters = DefaultMaxFixpointIters
	}

	if cfg.ClassFilter != "" {
		r, err := regexp.Compile(cfg.ClassFilter)
		if err == nil {
			cfg.classFilterRegex = r
		}
	}

	funcutil.MapInPlace(cfg.ImmutableGetters, compileRegexes)

	return cfg, nil
}

// RelPath returns filename path relative to the config source file
func (c Config) RelPath(filename string) string {
	return path.Join(path.Dir(c.sourceFile), filename)
}

// MatchClassFilter returns true if the class name matches the class filter set in the config file. If no
// class filter has been set in the config file, the regex will match anything and return true. This function safely
// considers the case where a filter has been specified by the user, but it could not be compiled to a regex. The safe
// case is to check whether the class filter string is a prefix of the class name
func (c Config) MatchClassFilter(classname string) bool {
	if c.classFilterRegex != nil {
		return c.classFilterRegex.MatchString(classname)
	} else if c.ClassFilter != "" {
		return strings.HasPrefix(classname, c.ClassFilter)
	} else {
		return true
	}
}

// Below are functions used to query the configuration on specific facts

// IsImmutableGetter returns true if the method identifier matches an immutable getter
// specification in the config file
func (c Config) IsImmutableGetter(mi MethodIdentifier) bool {
	return ExistsMid(c.ImmutableGetters, mi.equalOnNonEmptyFields)
}

// Verbose returns true is the configuration verbosity setting is larger than Info (i.e. Debug or Trace)
func (c Config) Verbose() bool {
	return c.LogLevel >= int(DebugLevel)
}

// ExceedsMaxPathLength returns true if the input exceeds the maximum access path length parameter of the
// configuration.
// (this implements the logic for using maximum path length; if the configuration setting is <= 0, then this
// returns false)
func (c Config) ExceedsMaxPathLength(n int) bool {
	if c.MaxPathLength <= 0 {
		return false
	}
	return n > c.MaxPathLength
}
