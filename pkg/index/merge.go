// SPDX-FileCopyrightText: Copyright 2025 Please Authors
// SPDX-License-Identifier: Apache-2.0

package index

import "time"

// MergeIndexedTools combines user- and project-scope tool lists, deduplicated
// by prefixed name with the project entry winning a collision. User tools
// come first in the output, then project-only tools.
func MergeIndexedTools(userTools, projectTools []IndexedTool) []IndexedTool {
	override := make(map[string]*IndexedTool, len(projectTools))
	for i := range projectTools {
		override[projectTools[i].Tool.Name] = &projectTools[i]
	}

	merged := make([]IndexedTool, 0, len(userTools)+len(projectTools))
	for i := range userTools {
		if project, ok := override[userTools[i].Tool.Name]; ok {
			merged = append(merged, *project)
			delete(override, userTools[i].Tool.Name)
			continue
		}
		merged = append(merged, userTools[i])
	}
	for i := range projectTools {
		if _, pending := override[projectTools[i].Tool.Name]; pending {
			merged = append(merged, projectTools[i])
			delete(override, projectTools[i].Tool.Name)
		}
	}
	return merged
}

// MergeBM25Stats combines corpus statistics from two disjoint corpora:
// document counts sum, average length is length-weighted, and document
// frequencies sum per term.
func MergeBM25Stats(a, b BM25Stats) BM25Stats {
	merged := BM25Stats{
		DocumentFrequencies: map[string]int{},
		TotalDocuments:      a.TotalDocuments + b.TotalDocuments,
	}
	for term, df := range a.DocumentFrequencies {
		merged.DocumentFrequencies[term] += df
	}
	for term, df := range b.DocumentFrequencies {
		merged.DocumentFrequencies[term] += df
	}
	if merged.TotalDocuments > 0 {
		total := a.AvgDocLength*float64(a.TotalDocuments) + b.AvgDocLength*float64(b.TotalDocuments)
		merged.AvgDocLength = total / float64(merged.TotalDocuments)
	}
	return merged
}

// MergeIndexes combines a user-scope and a project-scope index for serving.
// Tool dedup follows MergeIndexedTools; corpus statistics are combined by
// summation, which treats the two corpora as disjoint.
func MergeIndexes(user, project *Index) *Index {
	if user == nil {
		return project
	}
	if project == nil {
		return user
	}

	tools := MergeIndexedTools(user.Tools, project.Tools)
	merged := &Index{
		Version:       Version,
		CreatedAt:     earlier(user.CreatedAt, project.CreatedAt),
		UpdatedAt:     later(user.UpdatedAt, project.UpdatedAt),
		TotalTools:    len(tools),
		HasEmbeddings: user.HasEmbeddings || project.HasEmbeddings,
		BM25Stats:     MergeBM25Stats(user.BM25Stats, project.BM25Stats),
		Tools:         tools,
	}
	switch {
	case project.HasEmbeddings:
		merged.EmbeddingModel = project.EmbeddingModel
		merged.EmbeddingDimensions = project.EmbeddingDimensions
	case user.HasEmbeddings:
		merged.EmbeddingModel = user.EmbeddingModel
		merged.EmbeddingDimensions = user.EmbeddingDimensions
	}
	return merged
}

func earlier(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

func later(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
