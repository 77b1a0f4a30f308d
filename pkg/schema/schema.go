// Package schema defines the canonical 32-field patient feature record used by
// the intake wizard and the prediction service, the alias table that maps
// loosely formatted source names onto it, and the form-layer range checks.
package schema

import "fmt"

// Key names one canonical feature.
type Key string

const (
	Age                       Key = "Age"
	Gender                    Key = "Gender"
	Ethnicity                 Key = "Ethnicity"
	EducationLevel            Key = "EducationLevel"
	BMI                       Key = "BMI"
	Smoking                   Key = "Smoking"
	AlcoholConsumption        Key = "AlcoholConsumption"
	PhysicalActivity          Key = "PhysicalActivity"
	DietQuality               Key = "DietQuality"
	SleepQuality              Key = "SleepQuality"
	FamilyHistoryAlzheimers   Key = "FamilyHistoryAlzheimers"
	CardiovascularDisease     Key = "CardiovascularDisease"
	Diabetes                  Key = "Diabetes"
	Depression                Key = "Depression"
	HeadInjury                Key = "HeadInjury"
	Hypertension              Key = "Hypertension"
	SystolicBP                Key = "SystolicBP"
	DiastolicBP               Key = "DiastolicBP"
	CholesterolTotal          Key = "CholesterolTotal"
	CholesterolLDL            Key = "CholesterolLDL"
	CholesterolHDL            Key = "CholesterolHDL"
	CholesterolTriglycerides  Key = "CholesterolTriglycerides"
	MMSE                      Key = "MMSE"
	FunctionalAssessment      Key = "FunctionalAssessment"
	MemoryComplaints          Key = "MemoryComplaints"
	BehavioralProblems        Key = "BehavioralProblems"
	ADL                       Key = "ADL"
	Confusion                 Key = "Confusion"
	Disorientation            Key = "Disorientation"
	PersonalityChanges        Key = "PersonalityChanges"
	DifficultyCompletingTasks Key = "DifficultyCompletingTasks"
	Forgetfulness             Key = "Forgetfulness"
)

type Category string

const (
	CategoryDemographic Category = "demographic"
	CategoryLifestyle   Category = "lifestyle"
	CategoryMedical     Category = "medical"
	CategoryCognitive   Category = "cognitive"
	CategoryFunctional  Category = "functional"
)

// Domain is the shape of the values a feature accepts.
type Domain string

const (
	DomainContinuous  Domain = "continuous"
	DomainBinary      Domain = "binary"
	DomainCategorical Domain = "categorical"
)

type Option struct {
	Value float64 `json:"value"`
	Label string  `json:"label"`
}

type Feature struct {
	Key         Key      `json:"key"`
	Label       string   `json:"label"`
	Description string   `json:"description"`
	Category    Category `json:"category"`
	Domain      Domain   `json:"domain"`
	Min         float64  `json:"min"`
	Max         float64  `json:"max"`
	Step        float64  `json:"step,omitempty"`
	Unit        string   `json:"unit,omitempty"`
	Options     []Option `json:"options,omitempty"`
	Required    bool     `json:"required"`
}

// Contains reports whether v lies inside the feature's declared domain.
func (f Feature) Contains(v float64) bool {
	if len(f.Options) > 0 {
		for _, opt := range f.Options {
			if opt.Value == v {
				return true
			}
		}
		return false
	}
	return v >= f.Min && v <= f.Max
}

// Default is the value a blank manual-entry form starts from.
func (f Feature) Default() float64 {
	if len(f.Options) > 0 {
		return f.Options[0].Value
	}
	return f.Min
}

var noYes = []Option{{Value: 0, Label: "No"}, {Value: 1, Label: "Yes"}}

func continuous(key Key, label, desc string, cat Category, min, max, step float64, unit string) Feature {
	return Feature{Key: key, Label: label, Description: desc, Category: cat, Domain: DomainContinuous,
		Min: min, Max: max, Step: step, Unit: unit, Required: true}
}

func binary(key Key, label, desc string, cat Category) Feature {
	return Feature{Key: key, Label: label, Description: desc, Category: cat, Domain: DomainBinary,
		Min: 0, Max: 1, Options: noYes, Required: true}
}

func categorical(key Key, label, desc string, cat Category, opts []Option) Feature {
	return Feature{Key: key, Label: label, Description: desc, Category: cat, Domain: DomainCategorical,
		Min: opts[0].Value, Max: opts[len(opts)-1].Value, Options: opts, Required: true}
}

// features is kept in submission order.
var features = []Feature{
	continuous(Age, "Age", "Patient age in years", CategoryDemographic, 18, 120, 1, "years"),
	{
		Key: Gender, Label: "Gender", Description: "Biological sex of the patient",
		Category: CategoryDemographic, Domain: DomainBinary, Min: 0, Max: 1, Required: true,
		Options: []Option{{Value: 0, Label: "Female"}, {Value: 1, Label: "Male"}},
	},
	categorical(Ethnicity, "Ethnicity", "Patient ethnicity (encoded)", CategoryDemographic, []Option{
		{Value: 0, Label: "Caucasian"},
		{Value: 1, Label: "African American"},
		{Value: 2, Label: "Asian"},
		{Value: 3, Label: "Other"},
	}),
	categorical(EducationLevel, "Education Level", "Highest level of education completed", CategoryDemographic, []Option{
		{Value: 0, Label: "No formal education"},
		{Value: 1, Label: "Primary school"},
		{Value: 2, Label: "High school"},
		{Value: 3, Label: "Bachelor's degree"},
		{Value: 4, Label: "Master's degree"},
		{Value: 5, Label: "Doctorate"},
	}),
	continuous(BMI, "BMI", "Body Mass Index (kg/m²)", CategoryLifestyle, 10, 60, 0.1, "kg/m²"),
	binary(Smoking, "Smoking", "Current or past smoking status", CategoryLifestyle),
	continuous(AlcoholConsumption, "Alcohol Consumption", "Weekly alcohol consumption (units/week)", CategoryLifestyle, 0, 50, 0.5, "units/week"),
	continuous(PhysicalActivity, "Physical Activity", "Weekly physical activity (hours/week)", CategoryLifestyle, 0, 40, 0.5, "hours/week"),
	continuous(DietQuality, "Diet Quality", "Diet quality score (0-10, 10 being excellent)", CategoryLifestyle, 0, 10, 0.1, ""),
	continuous(SleepQuality, "Sleep Quality", "Sleep quality score (0-10, 10 being excellent)", CategoryLifestyle, 0, 10, 0.1, ""),
	binary(FamilyHistoryAlzheimers, "Family History of Alzheimer's", "Family history of Alzheimer's disease", CategoryMedical),
	binary(CardiovascularDisease, "Cardiovascular Disease", "History of cardiovascular disease", CategoryMedical),
	binary(Diabetes, "Diabetes", "History of diabetes", CategoryMedical),
	binary(Depression, "Depression", "History of depression", CategoryMedical),
	binary(HeadInjury, "Head Injury", "History of significant head injury", CategoryMedical),
	binary(Hypertension, "Hypertension", "History of high blood pressure", CategoryMedical),
	continuous(SystolicBP, "Systolic Blood Pressure", "Systolic blood pressure reading", CategoryMedical, 80, 250, 1, "mmHg"),
	continuous(DiastolicBP, "Diastolic Blood Pressure", "Diastolic blood pressure reading", CategoryMedical, 40, 150, 1, "mmHg"),
	continuous(CholesterolTotal, "Total Cholesterol", "Total cholesterol level", CategoryMedical, 100, 500, 1, "mg/dL"),
	continuous(CholesterolLDL, "LDL Cholesterol", "Low-density lipoprotein cholesterol", CategoryMedical, 50, 300, 1, "mg/dL"),
	continuous(CholesterolHDL, "HDL Cholesterol", "High-density lipoprotein cholesterol", CategoryMedical, 20, 120, 1, "mg/dL"),
	continuous(CholesterolTriglycerides, "Triglycerides", "Triglyceride levels", CategoryMedical, 30, 800, 1, "mg/dL"),
	continuous(MMSE, "MMSE Score", "Mini-Mental State Examination score (0-30)", CategoryCognitive, 0, 30, 1, ""),
	continuous(FunctionalAssessment, "Functional Assessment", "Functional assessment score (0-10)", CategoryFunctional, 0, 10, 0.1, ""),
	binary(MemoryComplaints, "Memory Complaints", "Patient reports memory problems", CategoryCognitive),
	binary(BehavioralProblems, "Behavioral Problems", "Presence of behavioral issues", CategoryCognitive),
	continuous(ADL, "Activities of Daily Living", "ADL independence score (0-10)", CategoryFunctional, 0, 10, 0.1, ""),
	binary(Confusion, "Confusion", "Episodes of confusion", CategoryCognitive),
	binary(Disorientation, "Disorientation", "Episodes of disorientation", CategoryCognitive),
	binary(PersonalityChanges, "Personality Changes", "Notable personality changes", CategoryCognitive),
	binary(DifficultyCompletingTasks, "Difficulty Completing Tasks", "Difficulty with complex tasks", CategoryFunctional),
	binary(Forgetfulness, "Forgetfulness", "Increased forgetfulness", CategoryCognitive),
}

// FieldCount is the number of canonical features.
const FieldCount = 32

var byKey = func() map[Key]int {
	idx := make(map[Key]int, len(features))
	for i, f := range features {
		idx[f.Key] = i
	}
	if len(idx) != FieldCount {
		panic(fmt.Sprintf("schema: expected %d features, have %d", FieldCount, len(idx)))
	}
	return idx
}()

// Features returns every feature definition in submission order.
func Features() []Feature {
	out := make([]Feature, len(features))
	copy(out, features)
	return out
}

// Keys returns the canonical keys in submission order.
func Keys() []Key {
	out := make([]Key, len(features))
	for i, f := range features {
		out[i] = f.Key
	}
	return out
}

// Lookup returns the definition for key. A false result for a Key constant
// declared in this package is a programming error.
func Lookup(key Key) (Feature, bool) {
	i, ok := byKey[key]
	if !ok {
		return Feature{}, false
	}
	return features[i], true
}

// Index is the position of key in the submission order, or -1.
func Index(key Key) int {
	if i, ok := byKey[key]; ok {
		return i
	}
	return -1
}

func ByCategory(cat Category) []Feature {
	var out []Feature
	for _, f := range features {
		if f.Category == cat {
			out = append(out, f)
		}
	}
	return out
}

func IsBinary(key Key) bool {
	f, ok := Lookup(key)
	return ok && f.Domain == DomainBinary
}
