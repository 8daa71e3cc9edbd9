package diff

import "strings"

// Effect is what a rule says about changing a property path.
type Effect string

const (
	// EffectAlways means any change to the path replaces the resource.
	EffectAlways Effect = "always"

	// EffectConditional means the change may replace the resource depending
	// on provider-side semantics.
	EffectConditional Effect = "conditional"
)

// RuleSet is the static, data-driven table of replacement-triggering
// property paths per resource type. Rules are declared, never inferred.
type RuleSet struct {
	byType map[string]map[string]Effect
}

// NewRuleSet creates an empty rule set. Resource types absent from the set
// classify conservatively.
func NewRuleSet() *RuleSet {
	return &RuleSet{byType: make(map[string]map[string]Effect)}
}

// Register adds one rule. The property path is relative to the Properties
// section ("QueueName", "RedrivePolicy.TargetArn"). A rule also covers every
// path nested under it.
func (r *RuleSet) Register(resourceType, propertyPath string, effect Effect) {
	rules, ok := r.byType[resourceType]
	if !ok {
		rules = make(map[string]Effect)
		r.byType[resourceType] = rules
	}
	rules[propertyPath] = effect
}

// Knows reports whether any rule is registered for the resource type.
func (r *RuleSet) Knows(resourceType string) bool {
	_, ok := r.byType[resourceType]
	return ok
}

// Effect returns the strongest registered effect covering propertyPath for
// the resource type. The bool is false when no rule matches.
func (r *RuleSet) Effect(resourceType, propertyPath string) (Effect, bool) {
	rules, ok := r.byType[resourceType]
	if !ok {
		return "", false
	}
	var found Effect
	matched := false
	for rulePath, effect := range rules {
		if propertyPath != rulePath && !strings.HasPrefix(propertyPath, rulePath+".") {
			continue
		}
		if !matched || effect == EffectAlways {
			found = effect
			matched = true
		}
	}
	return found, matched
}

// DefaultRules returns the built-in replacement table for common resource
// types. The table is deliberately incomplete: an unknown type classifies as
// ConditionalReplacement, which is the safe direction to be wrong in.
func DefaultRules() *RuleSet {
	r := NewRuleSet()

	r.Register("AWS::SQS::Queue", "QueueName", EffectAlways)
	r.Register("AWS::SQS::Queue", "FifoQueue", EffectAlways)

	r.Register("AWS::SNS::Topic", "TopicName", EffectAlways)
	r.Register("AWS::SNS::Topic", "FifoTopic", EffectAlways)

	r.Register("AWS::S3::Bucket", "BucketName", EffectAlways)
	r.Register("AWS::S3::Bucket", "ObjectLockEnabled", EffectAlways)

	r.Register("AWS::DynamoDB::Table", "TableName", EffectAlways)
	r.Register("AWS::DynamoDB::Table", "KeySchema", EffectAlways)
	r.Register("AWS::DynamoDB::Table", "LocalSecondaryIndexes", EffectAlways)
	r.Register("AWS::DynamoDB::Table", "BillingMode", EffectConditional)

	r.Register("AWS::Lambda::Function", "FunctionName", EffectAlways)
	r.Register("AWS::Lambda::Function", "PackageType", EffectAlways)

	r.Register("AWS::EC2::Instance", "ImageId", EffectAlways)
	r.Register("AWS::EC2::Instance", "AvailabilityZone", EffectAlways)
	r.Register("AWS::EC2::Instance", "KeyName", EffectAlways)
	r.Register("AWS::EC2::Instance", "SubnetId", EffectAlways)
	r.Register("AWS::EC2::Instance", "InstanceType", EffectConditional)
	r.Register("AWS::EC2::Instance", "BlockDeviceMappings", EffectConditional)

	r.Register("AWS::EC2::SecurityGroup", "GroupName", EffectAlways)
	r.Register("AWS::EC2::SecurityGroup", "GroupDescription", EffectAlways)
	r.Register("AWS::EC2::SecurityGroup", "VpcId", EffectAlways)

	r.Register("AWS::RDS::DBInstance", "DBInstanceIdentifier", EffectAlways)
	r.Register("AWS::RDS::DBInstance", "Engine", EffectAlways)
	r.Register("AWS::RDS::DBInstance", "MasterUsername", EffectAlways)
	r.Register("AWS::RDS::DBInstance", "DBInstanceClass", EffectConditional)
	r.Register("AWS::RDS::DBInstance", "AvailabilityZone", EffectConditional)

	r.Register("AWS::IAM::Role", "RoleName", EffectAlways)
	r.Register("AWS::IAM::Role", "Path", EffectAlways)

	r.Register("AWS::Logs::LogGroup", "LogGroupName", EffectAlways)

	r.Register("AWS::EC2::Volume", "AvailabilityZone", EffectAlways)
	r.Register("AWS::EC2::Volume", "SnapshotId", EffectAlways)
	r.Register("AWS::EC2::Volume", "Size", EffectConditional)

	return r
}
