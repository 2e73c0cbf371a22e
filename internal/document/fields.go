package document

// Label names one of the named content fields of an instance. The scanner
// mixes languages in its labels; the values are matched byte for byte.
type Label string

const (
	LabelMethod    Label = "方法"
	LabelParameter Label = "Parameter"
	LabelAttack    Label = "攻擊"
	LabelEvidence  Label = "Evidence"
	LabelOtherInfo Label = "Other Info"
)

// Labels lists the named content fields in output order.
var Labels = [...]Label{
	LabelMethod,
	LabelParameter,
	LabelAttack,
	LabelEvidence,
	LabelOtherInfo,
}

// IsLabel reports whether name is one of the named content labels.
func IsLabel(name string) bool {
	for _, l := range Labels {
		if string(l) == name {
			return true
		}
	}
	return false
}

// ResolveField applies the content-first precedence rule. A label present in
// content wins even when its value is empty or null; otherwise the top-level
// member of the same name is used; otherwise the result is empty.
func ResolveField(content, top Object, label Label) string {
	if v, ok := content.Get(string(label)); ok {
		return Text(v)
	}
	if v, ok := top.Get(string(label)); ok {
		return Text(v)
	}
	return ""
}

// Fields holds the resolved values of the five named content labels.
type Fields struct {
	Method    string
	Parameter string
	Attack    string
	Evidence  string
	OtherInfo string
}

// ResolveFields resolves every named label of one instance.
func ResolveFields(content, top Object) Fields {
	return Fields{
		Method:    ResolveField(content, top, LabelMethod),
		Parameter: ResolveField(content, top, LabelParameter),
		Attack:    ResolveField(content, top, LabelAttack),
		Evidence:  ResolveField(content, top, LabelEvidence),
		OtherInfo: ResolveField(content, top, LabelOtherInfo),
	}
}

// Get returns the value for label.
func (f Fields) Get(label Label) string {
	switch label {
	case LabelMethod:
		return f.Method
	case LabelParameter:
		return f.Parameter
	case LabelAttack:
		return f.Attack
	case LabelEvidence:
		return f.Evidence
	case LabelOtherInfo:
		return f.OtherInfo
	}
	return ""
}

// Content builds a content object holding only the non-empty fields, in
// label order.
func (f Fields) Content() Object {
	var out Object
	for _, l := range Labels {
		if v := f.Get(l); v != "" {
			out = append(out, Member{Name: string(l), Value: StringValue(v)})
		}
	}
	return out
}
