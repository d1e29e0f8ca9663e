package evidence

import "strings"

// Topic is the subject-matter tag assigned to a criterion when the rubric is
// loaded. Keyword groups and direct markers are keyed by topic so that the
// evaluation path never re-derives the classification from the criterion name.
type Topic string

const (
	TopicDataPrep       Topic = "data_prep"
	TopicRegression     Topic = "regression"
	TopicClassification Topic = "classification"
	TopicKMeans         Topic = "kmeans"
	TopicDensity        Topic = "density_clustering"
	TopicHierarchical   Topic = "hierarchical_clustering"
	TopicForum          Topic = "forum"
	TopicFormat         Topic = "format"
	TopicGeneric        Topic = "generic"
)

// ClassifyTopic maps a criterion name (Spanish or English) to a Topic via
// substring matching. Clustering variants are checked before the broader
// regression/classification buckets because names like "Agrupamiento con
// K-Means para clasificar clientes" must land on the specific algorithm.
func ClassifyTopic(name string) Topic {
	n := strings.ToLower(name)
	switch {
	case containsAny(n, "k-means", "kmeans", "k means"):
		return TopicKMeans
	case containsAny(n, "dbscan", "db-scan", "densidad", "density"):
		return TopicDensity
	case containsAny(n, "agglomerative", "aglomerativo", "jerárquico", "jerarquico", "hierarchical", "dendrograma", "dendrogram"):
		return TopicHierarchical
	case containsAny(n, "regresión", "regresion", "regression"):
		return TopicRegression
	case containsAny(n, "clasificación", "clasificacion", "classification"):
		return TopicClassification
	case containsAny(n, "foro", "forum"):
		return TopicForum
	case containsAny(n, "formato", "format", "entrega", "delivery"):
		return TopicFormat
	case containsAny(n, "carga", "dataset", "datos", "data", "análisis", "analisis", "exploración", "exploracion"):
		return TopicDataPrep
	default:
		return TopicGeneric
	}
}

// keywordGroups lists, per topic, the disjoint groups of terms whose presence
// counts as topical evidence. A group matches when at least one member appears
// in the lowercased document text.
var keywordGroups = map[Topic][][]string{
	TopicDataPrep: {
		{"dataset", "datos", "data", "csv", "archivo"},
		{"carga", "load", "read_csv", "lectura"},
		{"análisis", "analisis", "exploración", "exploracion", "eda", "describe", "info", "head"},
	},
	TopicRegression: {
		{"regresión", "regresion", "regression", "regressor", "predic"},
		{"mae", "mse", "rmse", "r²", "r2", "error", "métrica", "metrica"},
	},
	TopicClassification: {
		{"clasificación", "clasificacion", "classification", "classifier", "clase"},
		{"accuracy", "precision", "recall", "f1", "score", "exactitud"},
	},
	TopicKMeans: {
		{"kmeans", "k-means", "k means"},
		{"codo", "elbow", "silhouette", "silueta", "centroide", "centroid", "cluster"},
	},
	TopicDensity: {
		{"dbscan", "db-scan"},
		{"epsilon", "eps", "min_samples", "noise", "outlier", "ruido"},
	},
	TopicHierarchical: {
		{"agglomerative", "aglomerativo", "jerárquico", "jerarquico", "hierarchical", "dendrograma", "dendrogram"},
		{"linkage", "ward", "cluster"},
	},
	TopicForum: {
		{"foro", "forum", "participación", "participacion", "comentario"},
	},
	TopicFormat: {
		{"documento", "entrega", "formato", "archivo"},
	},
}

// directMarkers are terms whose literal presence is unambiguous proof that the
// topic was addressed, regardless of surrounding noise. Matching one skips the
// keyword phase and the model probe entirely.
var directMarkers = map[Topic][]string{
	TopicKMeans:       {"kmeans", "k-means"},
	TopicDensity:      {"dbscan", "db-scan"},
	TopicHierarchical: {"agglomerativeclustering", "agglomerative clustering", "clustering aglomerativo", "dendrograma", "dendrogram"},
}

// KeywordGroupsFor returns the keyword groups for a topic. Generic criteria
// have no fixed dictionary; their single group is derived from the criterion
// name so that a generic criterion is never auto-rejected for lacking one.
func KeywordGroupsFor(topic Topic, criterionName string) [][]string {
	if g, ok := keywordGroups[topic]; ok {
		return g
	}
	var group []string
	for _, w := range strings.Fields(strings.ToLower(criterionName)) {
		w = strings.Trim(w, ".,:;()")
		if len(w) > 3 {
			group = append(group, w)
		}
	}
	if len(group) == 0 {
		group = []string{strings.ToLower(criterionName)}
	}
	return [][]string{group}
}

// HasDirectMarker reports whether the document text contains a direct marker
// for the topic. Matching is case-insensitive.
func HasDirectMarker(topic Topic, text string) bool {
	markers, ok := directMarkers[topic]
	if !ok {
		return false
	}
	low := strings.ToLower(text)
	for _, m := range markers {
		if strings.Contains(low, m) {
			return true
		}
	}
	return false
}

// MatchKeywordGroups counts how many of the topic's keyword groups have at
// least one member in the lowercased text. The count is a coarse confidence
// signal, not a pass/fail verdict on its own.
func MatchKeywordGroups(topic Topic, criterionName, text string) int {
	low := strings.ToLower(text)
	matched := 0
	for _, group := range KeywordGroupsFor(topic, criterionName) {
		if containsAny(low, group...) {
			matched++
		}
	}
	return matched
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
