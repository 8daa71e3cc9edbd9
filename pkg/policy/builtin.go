package policy

import (
	"time"
)

// GetBuiltinPolicies returns all built-in policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		requiredTagsPolicy(),
		deletionProtectionPolicy(),
		wildcardIAMPolicy(),
	}
}

// requiredTagsPolicy warns when taggable resources carry no Tags property.
func requiredTagsPolicy() Policy {
	return Policy{
		Name:        "required-tags",
		Description: "Taggable resources should declare a Tags property",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"tagging", "conventions"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package cirrus.policies.tags

import rego.v1

taggable := {
	"AWS::S3::Bucket",
	"AWS::SQS::Queue",
	"AWS::SNS::Topic",
	"AWS::DynamoDB::Table",
	"AWS::Lambda::Function",
	"AWS::EC2::Instance",
	"AWS::RDS::DBInstance",
}

deny contains violation if {
	input.resource.type in taggable
	not input.resource.properties.Tags
	violation := {
		"message": sprintf("Resource %s (%s) has no Tags property", [input.resource.logical_id, input.resource.type]),
		"severity": "warning",
		"resource": input.resource.logical_id,
	}
}

deny contains violation if {
	input.resource.type in taggable
	input.resource.properties.Tags == []
	violation := {
		"message": sprintf("Resource %s (%s) has an empty Tags property", [input.resource.logical_id, input.resource.type]),
		"severity": "warning",
		"resource": input.resource.logical_id,
	}
}`,
	}
}

// deletionProtectionPolicy blocks stateful resources that would be deleted
// outright with their stack.
func deletionProtectionPolicy() Policy {
	return Policy{
		Name:        "deletion-protection",
		Description: "Stateful resources must set DeletionPolicy to Retain or Snapshot",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"data-safety"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package cirrus.policies.deletion

import rego.v1

stateful := {
	"AWS::S3::Bucket",
	"AWS::DynamoDB::Table",
	"AWS::RDS::DBInstance",
	"AWS::RDS::DBCluster",
	"AWS::EFS::FileSystem",
}

deny contains violation if {
	input.resource.type in stateful
	not input.resource.deletion_policy in {"Retain", "Snapshot"}
	violation := {
		"message": sprintf("Stateful resource %s (%s) must set DeletionPolicy to Retain or Snapshot", [input.resource.logical_id, input.resource.type]),
		"severity": "error",
		"resource": input.resource.logical_id,
	}
}`,
	}
}

// wildcardIAMPolicy blocks IAM policy statements granting all actions.
func wildcardIAMPolicy() Policy {
	return Policy{
		Name:        "no-wildcard-iam",
		Description: "IAM policy statements must not allow Action \"*\"",
		Severity:    SeverityCritical,
		Enabled:     true,
		Tags:        []string{"security", "iam"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package cirrus.policies.iam

import rego.v1

iam_types := {"AWS::IAM::Policy", "AWS::IAM::ManagedPolicy"}

deny contains violation if {
	input.resource.type in iam_types
	some stmt in input.resource.properties.PolicyDocument.Statement
	stmt.Effect == "Allow"
	stmt.Action == "*"
	violation := {
		"message": sprintf("IAM policy %s allows all actions", [input.resource.logical_id]),
		"severity": "critical",
		"resource": input.resource.logical_id,
	}
}

deny contains violation if {
	input.resource.type in iam_types
	some stmt in input.resource.properties.PolicyDocument.Statement
	stmt.Effect == "Allow"
	some action in stmt.Action
	action == "*"
	violation := {
		"message": sprintf("IAM policy %s allows all actions", [input.resource.logical_id]),
		"severity": "critical",
		"resource": input.resource.logical_id,
	}
}

deny contains violation if {
	input.resource.type == "AWS::IAM::Role"
	some stmt in input.resource.properties.Policies[_].PolicyDocument.Statement
	stmt.Effect == "Allow"
	stmt.Action == "*"
	violation := {
		"message": sprintf("IAM role %s embeds a policy allowing all actions", [input.resource.logical_id]),
		"severity": "critical",
		"resource": input.resource.logical_id,
	}
}`,
	}
}
