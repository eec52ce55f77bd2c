package lang

func init() {
	Register(&LanguageSpec{
		Language:         Java,
		FileExtensions:   []string{".java"},
		PackageNodeTypes: []string{"package_declaration"},
		PackageNameTypes: []string{"scoped_identifier", "identifier"},
		ClassNodeTypes: []string{
			"class_declaration",
			"interface_declaration",
			"enum_declaration",
			"annotation_type_declaration",
			"record_declaration",
		},
		FunctionNodeTypes: []string{"method_declaration", "constructor_declaration"},
		CallNodeTypes:     []string{"method_invocation"},
		NameField:         "name",
		BodyField:         "body",
		CalleeField:       "name",
	})
}
