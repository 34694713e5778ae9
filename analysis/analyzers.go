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

// Package analysis contains helper functions for running analysis passes.
package analysis

import (
	"time"

	"github.com/awslabs/ar-dex-tools/analysis/config"
	"github.com/awslabs/ar-dex-tools/analysis/ir"
	"github.com/awslabs/ar-dex-tools/analysis/subcomponents"
	"github.com/awslabs/ar-dex-tools/internal/funcutil"
)

// Version is the version of the ardex tools.
const Version = "v0.1.0"

// GetterPredicateFromConfig returns the predicate recognizing the immutable getters declared
// in the configuration file.
func GetterPredicateFromConfig(cfg *config.Config) subcomponents.GetterPredicate {
	return func(m *ir.MethodRef) bool {
		return cfg.IsImmutableGetter(config.MethodIdentifier{Class: m.Class, Name: m.Name, Proto: m.Proto})
	}
}

// AnalyzeMethod runs the subcomponent analysis of one method with the getters and limits
// declared in the configuration.
func AnalyzeMethod(cfg *config.Config, logger *config.LogGroup, m *ir.Method) (*subcomponents.Analyzer, error) {
	return subcomponents.NewAnalyzer(m, GetterPredicateFromConfig(cfg), subcomponents.Params{
		MaxPathLength: cfg.MaxPathLength,
		TrackLocals:   cfg.TrackLocals,
		MaxIterations: cfg.MaxFixpointIters,
		Logger:        logger,
	})
}

// MethodAnalysisResult pairs an analyzed method with its analyzer, or with the error that
// stopped its analysis.
type MethodAnalysisResult struct {
	Method   *ir.Method
	Analyzer *subcomponents.Analyzer
	Err      error
}

// RunMethodAnalyses runs the subcomponent analysis of every method matching the
// configuration's class filter, in parallel using numRoutines, and returns one result per
// analyzed method in input order.
func RunMethodAnalyses(cfg *config.Config, logger *config.LogGroup,
	methods []*ir.Method, numRoutines int) []MethodAnalysisResult {
	logger.Infof("Starting subcomponent analysis ...")
	start := time.Now()
	if numRoutines < 1 {
		numRoutines = 1
	}

	var jobs []*ir.Method
	for _, m := range methods {
		if m.Ref != nil && !cfg.MatchClassFilter(m.Ref.Class) {
			logger.Debugf("Skipping %v: filtered out by class-filter", m)
			continue
		}
		jobs = append(jobs, m)
	}

	f := func(m *ir.Method) MethodAnalysisResult {
		an, err := AnalyzeMethod(cfg, logger, m)
		if err != nil {
			logger.Errorf("error while analyzing %v:\n\t%v", m, err)
			return MethodAnalysisResult{Method: m, Err: err}
		}
		return MethodAnalysisResult{Method: m, Analyzer: an}
	}
	results := funcutil.MapParallel(jobs, f, numRoutines)

	logger.Infof("Subcomponent analysis done (%.2f s).", time.Since(start).Seconds())
	return results
}
