package lang

// Language represents a supported programming language.
type Language string

const (
	Java Language = "java"
)

// Role classifies a syntax node kind. The set is closed: every node kind a
// language cares about maps to exactly one Role through its LanguageSpec.
type Role uint8

const (
	RoleNone Role = iota
	RolePackage
	RoleClass
	RoleFunction
	RoleCall
)

var roleNames = [...]string{"none", "package", "class", "function", "call"}

func (r Role) String() string {
	if int(r) < len(roleNames) {
		return roleNames[r]
	}
	return "unknown"
}

// Tag labels a node captured while walking a syntax tree. Tags replace the
// free-form capture names of string queries.
type Tag uint8

const (
	TagNone Tag = iota
	TagPackage
	TagPackageName
	TagClass
	TagClassName
	TagFunction
	TagFunctionName
	TagFunctionBody
	TagCall
	TagCallee
)

var tagNames = [...]string{
	"none", "package", "package_name", "class", "class_name",
	"function", "function_name", "function_body", "call", "callee",
}

func (t Tag) String() string {
	if int(t) < len(tagNames) {
		return tagNames[t]
	}
	return "unknown"
}

// LanguageSpec defines the tree-sitter node types for a language.
type LanguageSpec struct {
	Language       Language
	FileExtensions []string

	PackageNodeTypes  []string
	ClassNodeTypes    []string
	FunctionNodeTypes []string
	CallNodeTypes     []string

	// PackageNameTypes lists the child kinds holding a package's dotted name.
	PackageNameTypes []string

	// NameField is the field holding a class or function name identifier.
	NameField string
	// BodyField is the field holding a function body.
	BodyField string
	// CalleeField is the field holding the invoked identifier of a call.
	CalleeField string

	roles map[string]Role
}

// RoleOf returns the role of a node kind, or RoleNone.
func (s *LanguageSpec) RoleOf(kind string) Role {
	return s.roles[kind]
}

// IsPackageName reports whether kind holds a package's dotted name.
func (s *LanguageSpec) IsPackageName(kind string) bool {
	for _, k := range s.PackageNameTypes {
		if k == kind {
			return true
		}
	}
	return false
}

func (s *LanguageSpec) buildRoles() {
	s.roles = make(map[string]Role)
	add := func(kinds []string, r Role) {
		for _, k := range kinds {
			s.roles[k] = r
		}
	}
	add(s.PackageNodeTypes, RolePackage)
	add(s.ClassNodeTypes, RoleClass)
	add(s.FunctionNodeTypes, RoleFunction)
	add(s.CallNodeTypes, RoleCall)
}

// registry maps file extensions to language specs. It is filled by init
// functions only and read-only afterwards.
var registry = map[string]*LanguageSpec{}

// Register adds a LanguageSpec to the registry. Call from init only.
func Register(spec *LanguageSpec) {
	spec.buildRoles()
	for _, ext := range spec.FileExtensions {
		registry[ext] = spec
	}
}

// ForExtension returns the LanguageSpec for a file extension (e.g. ".java").
func ForExtension(ext string) *LanguageSpec {
	return registry[ext]
}

// ForLanguage returns the LanguageSpec for a language.
func ForLanguage(lang Language) *LanguageSpec {
	for _, spec := range registry {
		if spec.Language == lang {
			return spec
		}
	}
	return nil
}

// LanguageForExtension returns the Language for a file extension.
func LanguageForExtension(ext string) (Language, bool) {
	spec := registry[ext]
	if spec == nil {
		return "", false
	}
	return spec.Language, true
}
