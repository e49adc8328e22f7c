package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildChapterMapping creates the Bleve mapping for chapter documents.
// Name and content are stemmed English text; book_id is an exact keyword
// used to scope every query to one book.
func buildChapterMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = en.AnalyzerName

	docMapping := bleve.NewDocumentMapping()

	nameFieldMapping := bleve.NewTextFieldMapping()
	nameFieldMapping.Analyzer = en.AnalyzerName
	nameFieldMapping.Store = true
	nameFieldMapping.IncludeTermVectors = true
	docMapping.AddFieldMappingsAt("name", nameFieldMapping)

	// Content is large; index it but do not store it.
	contentFieldMapping := bleve.NewTextFieldMapping()
	contentFieldMapping.Analyzer = en.AnalyzerName
	contentFieldMapping.Store = false
	docMapping.AddFieldMappingsAt("content", contentFieldMapping)

	bookFieldMapping := bleve.NewTextFieldMapping()
	bookFieldMapping.Analyzer = keyword.Name
	bookFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("book_id", bookFieldMapping)

	permalinkFieldMapping := bleve.NewTextFieldMapping()
	permalinkFieldMapping.Analyzer = keyword.Name
	permalinkFieldMapping.Store = true
	permalinkFieldMapping.Index = false
	docMapping.AddFieldMappingsAt("permalink", permalinkFieldMapping)

	numberFieldMapping := bleve.NewNumericFieldMapping()
	numberFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("number", numberFieldMapping)

	indexMapping.DefaultMapping = docMapping
	return indexMapping
}
