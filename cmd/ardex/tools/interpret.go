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

package tools

import "regexp"

// Captures errors happening before any analysis starts (a method file could not be read)
var regexCouldNotRead = regexp.MustCompile("failed to read method file")

// Captures parse and validation errors inside a method file
var regexCouldNotParse = regexp.MustCompile("failed to load methods from")

// Captures the error returned when the config flag was left out
var regexConfigMissing = regexp.MustCompile("file not specified")

// HintForErrorMessage looks for specific error message and returns some other message that might help the user
// resolve the problem.
func HintForErrorMessage(errMsg string) string {
	if regexCouldNotRead.MatchString(errMsg) {
		return "make sure the paths after the flags lead to method files; all command line flags should be before them"
	}
	if regexCouldNotParse.MatchString(errMsg) {
		return "method files are yaml documents listing methods, blocks and instructions; check the file against the expected layout"
	}
	if regexConfigMissing.MatchString(errMsg) {
		return "pass -config with a configuration file declaring the immutable getters"
	}
	return ""
}
