package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/aws-sdk-go-v2/service/scheduler"
	schedulertypes "github.com/aws/aws-sdk-go-v2/service/scheduler/types"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/skiffhq/skiff/internal/core/async"
	"github.com/skiffhq/skiff/internal/core/composer"
	"github.com/skiffhq/skiff/internal/core/database"
	"github.com/skiffhq/skiff/internal/core/function"
	"github.com/skiffhq/skiff/internal/core/network"
	"github.com/skiffhq/skiff/internal/core/role"
	"github.com/skiffhq/skiff/internal/core/trigger"
)

// assumeRolePolicy lets the function runtime and the scheduler assume the
// shared execution role.
const assumeRolePolicy = `{
  "Version": "2012-10-17",
  "Statement": [
    {"Effect": "Allow", "Principal": {"Service": ["lambda.amazonaws.com", "scheduler.amazonaws.com"]}, "Action": "sts:AssumeRole"}
  ]
}`

// AWSEngine is the live provisioning engine. Resource creation happens in
// the background: each Create call returns immediately with deferred
// values that resolve (or fail) once the corresponding API calls finish,
// so dependency ordering flows through the async chains the composer
// built rather than through call sequencing.
type AWSEngine struct {
	region         string
	artifactBucket string
	logger         *slog.Logger

	ec2     *ec2.Client
	rds     *rds.Client
	secrets *secretsmanager.Client
	iam     *iam.Client
	lambda  *lambda.Client
	sqs     *sqs.Client
	s3      *s3.Client
	sched   *scheduler.Client

	// roleRefs maps role names to their deferred ARNs so function builds
	// can wait for the role to exist.
	roleRefs map[string]async.Value[string]
}

// NewAWSEngine creates a live engine bound to one region and credentials.
func NewAWSEngine(cfg Config, logger *slog.Logger) *AWSEngine {
	if logger == nil {
		logger = slog.Default()
	}
	creds := credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")

	return &AWSEngine{
		region:         cfg.Region,
		artifactBucket: cfg.ArtifactBucket,
		logger:         logger.With("engine", "aws", "region", cfg.Region),
		ec2:            ec2.New(ec2.Options{Region: cfg.Region, Credentials: creds}),
		rds:            rds.New(rds.Options{Region: cfg.Region, Credentials: creds}),
		secrets:        secretsmanager.New(secretsmanager.Options{Region: cfg.Region, Credentials: creds}),
		iam:            iam.New(iam.Options{Region: cfg.Region, Credentials: creds}),
		lambda:         lambda.New(lambda.Options{Region: cfg.Region, Credentials: creds}),
		sqs:            sqs.New(sqs.Options{Region: cfg.Region, Credentials: creds}),
		s3:             s3.New(s3.Options{Region: cfg.Region, Credentials: creds}),
		sched:          scheduler.New(scheduler.Options{Region: cfg.Region, Credentials: creds}),
		roleRefs:       make(map[string]async.Value[string]),
	}
}

// =============================================================================
// Network
// =============================================================================

func (e *AWSEngine) CreateNetwork(ctx context.Context, spec network.Spec) (*network.Topology, error) {
	vpcID, resolveVpc, rejectVpc := async.New[string]()
	subnetIDs, resolveSubnets, rejectSubnets := async.New[[]string]()

	go func() {
		logger := e.logger.With("network", spec.Name)

		vpcOut, err := e.ec2.CreateVpc(ctx, &ec2.CreateVpcInput{
			CidrBlock: aws.String(spec.CIDR),
		})
		if err != nil {
			err = fmt.Errorf("create vpc %q: %w", spec.Name, err)
			rejectVpc(err)
			rejectSubnets(err)
			return
		}
		id := aws.ToString(vpcOut.Vpc.VpcId)
		logger.Info("vpc created", "vpc_id", id)
		resolveVpc(id)

		subnets := make([]string, 0, spec.SubnetCount)
		for i := 0; i < spec.SubnetCount; i++ {
			subnetOut, err := e.ec2.CreateSubnet(ctx, &ec2.CreateSubnetInput{
				VpcId:     aws.String(id),
				CidrBlock: aws.String(fmt.Sprintf("10.0.%d.0/24", i)),
			})
			if err != nil {
				rejectSubnets(fmt.Errorf("create subnet %d of %q: %w", i, spec.Name, err))
				return
			}
			subnets = append(subnets, aws.ToString(subnetOut.Subnet.SubnetId))
		}
		logger.Info("subnets created", "count", len(subnets))
		resolveSubnets(subnets)
	}()

	return &network.Topology{ID: vpcID, SubnetIDs: subnetIDs, Routing: spec.Routing}, nil
}

func (e *AWSEngine) CreateSecurityBoundary(ctx context.Context, spec network.BoundarySpec) (*network.Boundary, error) {
	groupID, resolve, reject := async.New[string]()

	go func() {
		vpcID, err := spec.Network.ID.Await(ctx)
		if err != nil {
			reject(err)
			return
		}

		out, err := e.ec2.CreateSecurityGroup(ctx, &ec2.CreateSecurityGroupInput{
			GroupName:   aws.String(spec.Name),
			Description: aws.String("skiff managed boundary - " + spec.Name),
			VpcId:       aws.String(vpcID),
		})
		if err != nil {
			reject(fmt.Errorf("create security group %q: %w", spec.Name, err))
			return
		}
		e.logger.Info("security group created", "group_id", aws.ToString(out.GroupId))
		resolve(aws.ToString(out.GroupId))
	}()

	return &network.Boundary{ID: groupID, Network: spec.Network}, nil
}

// =============================================================================
// Database
// =============================================================================

func (e *AWSEngine) CreateDatabaseCluster(ctx context.Context, spec database.Spec) (*database.Cluster, error) {
	endpoint, resolveEndpoint, rejectEndpoint := async.New[string]()
	secretRef, resolveSecret, rejectSecret := async.New[string]()

	go func() {
		fail := func(err error) {
			rejectEndpoint(err)
			rejectSecret(err)
		}

		subnets, err := spec.Network.SubnetIDs.Await(ctx)
		if err != nil {
			fail(err)
			return
		}
		groupID, err := spec.Boundary.ID.Await(ctx)
		if err != nil {
			fail(err)
			return
		}

		subnetGroup := spec.Name + "-subnets"
		if _, err := e.rds.CreateDBSubnetGroup(ctx, &rds.CreateDBSubnetGroupInput{
			DBSubnetGroupName:        aws.String(subnetGroup),
			DBSubnetGroupDescription: aws.String("skiff managed subnet group - " + spec.Name),
			SubnetIds:                subnets,
		}); err != nil {
			fail(fmt.Errorf("create db subnet group %q: %w", subnetGroup, err))
			return
		}

		out, err := e.rds.CreateDBCluster(ctx, &rds.CreateDBClusterInput{
			DBClusterIdentifier:      aws.String(spec.Name),
			Engine:                   aws.String(spec.Engine),
			DatabaseName:             aws.String(spec.DatabaseName),
			MasterUsername:           aws.String("admin"),
			ManageMasterUserPassword: aws.Bool(true),
			DBSubnetGroupName:        aws.String(subnetGroup),
			VpcSecurityGroupIds:      []string{groupID},
		})
		if err != nil {
			fail(fmt.Errorf("create db cluster %q: %w", spec.Name, err))
			return
		}

		e.logger.Info("db cluster created", "identifier", spec.Name)
		resolveEndpoint(aws.ToString(out.DBCluster.Endpoint))
		if out.DBCluster.MasterUserSecret == nil {
			rejectSecret(fmt.Errorf("db cluster %q: no managed master secret", spec.Name))
			return
		}
		resolveSecret(aws.ToString(out.DBCluster.MasterUserSecret.SecretArn))
	}()

	return &database.Cluster{Identifier: spec.Name, Endpoint: endpoint, SecretRef: secretRef}, nil
}

func (e *AWSEngine) ResolveSecret(ctx context.Context, ref async.Value[string]) async.Value[string] {
	return async.MapErr(ref, func(secretARN string) (string, error) {
		out, err := e.secrets.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
			SecretId: aws.String(secretARN),
		})
		if err != nil {
			return "", fmt.Errorf("get secret value: %w", err)
		}
		return aws.ToString(out.SecretString), nil
	})
}

// =============================================================================
// Storage and Queue
// =============================================================================

func (e *AWSEngine) CreateBucket(ctx context.Context, name string) (*composer.Bucket, error) {
	id, resolve, reject := async.New[string]()

	go func() {
		input := &s3.CreateBucketInput{Bucket: aws.String(name)}
		// us-east-1 rejects an explicit location constraint.
		if e.region != "us-east-1" {
			input.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
				LocationConstraint: s3types.BucketLocationConstraint(e.region),
			}
		}
		if _, err := e.s3.CreateBucket(ctx, input); err != nil {
			reject(fmt.Errorf("create bucket %q: %w", name, err))
			return
		}
		e.logger.Info("bucket created", "bucket", name)
		resolve(name)
	}()

	return &composer.Bucket{Name: name, ID: id}, nil
}

func (e *AWSEngine) CreateQueue(ctx context.Context, name string) (*composer.Queue, error) {
	url, resolve, reject := async.New[string]()

	go func() {
		out, err := e.sqs.CreateQueue(ctx, &sqs.CreateQueueInput{QueueName: aws.String(name)})
		if err != nil {
			reject(fmt.Errorf("create queue %q: %w", name, err))
			return
		}
		e.logger.Info("queue created", "queue", name)
		resolve(aws.ToString(out.QueueUrl))
	}()

	return &composer.Queue{Name: name, URL: url}, nil
}

// =============================================================================
// Role and Functions
// =============================================================================

func (e *AWSEngine) CreateRole(ctx context.Context, r *role.Role) (async.Value[string], error) {
	arn, resolve, reject := async.New[string]()
	e.roleRefs[r.Name()] = arn

	go func() {
		out, err := e.iam.CreateRole(ctx, &iam.CreateRoleInput{
			RoleName:                 aws.String(r.Name()),
			AssumeRolePolicyDocument: aws.String(assumeRolePolicy),
		})
		if err != nil {
			reject(fmt.Errorf("create role %q: %w", r.Name(), err))
			return
		}

		for _, attachment := range r.Attachments() {
			if _, err := e.iam.PutRolePolicy(ctx, &iam.PutRolePolicyInput{
				RoleName:       aws.String(r.Name()),
				PolicyName:     aws.String(attachment.Name),
				PolicyDocument: aws.String(attachment.Policy),
			}); err != nil {
				reject(fmt.Errorf("attach policy %q to role %q: %w", attachment.Name, r.Name(), err))
				return
			}
		}

		e.logger.Info("role created", "role", r.Name(), "policies", len(r.Attachments()))
		resolve(aws.ToString(out.Role.Arn))
	}()

	return arn, nil
}

func (e *AWSEngine) CreateFunction(ctx context.Context, spec *function.Spec) (*composer.FunctionHandle, error) {
	roleARN, ok := e.roleRefs[spec.RoleName]
	if !ok {
		return nil, fmt.Errorf("function %q references unknown role %q", spec.Name, spec.RoleName)
	}

	ref, resolve, reject := async.New[string]()

	go func() {
		arn, err := roleARN.Await(ctx)
		if err != nil {
			reject(err)
			return
		}

		env, err := resolveEnvironment(ctx, spec.Environment)
		if err != nil {
			reject(fmt.Errorf("function %q environment: %w", spec.Name, err))
			return
		}

		input := &lambda.CreateFunctionInput{
			FunctionName: aws.String(spec.Name),
			Role:         aws.String(arn),
			Handler:      aws.String(spec.Handler),
			Runtime:      lambdatypes.RuntimeProvidedal2,
			Code: &lambdatypes.FunctionCode{
				S3Bucket: aws.String(e.artifactBucket),
				S3Key:    aws.String(spec.CodeRef),
			},
			Layers:        spec.Layers,
			Timeout:       aws.Int32(int32(spec.TimeoutSeconds)),
			MemorySize:    aws.Int32(int32(spec.MemoryMB)),
			Architectures: []lambdatypes.Architecture{lambdatypes.Architecture(spec.Arch)},
			Environment:   &lambdatypes.Environment{Variables: env},
		}

		if vpcConfig, err := resolveVpcConfig(ctx, spec); err != nil {
			reject(err)
			return
		} else if vpcConfig != nil {
			input.VpcConfig = vpcConfig
		}

		out, err := e.lambda.CreateFunction(ctx, input)
		if err != nil {
			reject(fmt.Errorf("create function %q: %w", spec.Name, err))
			return
		}
		e.logger.Info("function created", "function", spec.Name)
		resolve(aws.ToString(out.FunctionArn))
	}()

	return &composer.FunctionHandle{Spec: spec, Ref: ref}, nil
}

// resolveEnvironment awaits every deferred environment value. A poisoned
// value fails the function, matching the hard-stop contract.
func resolveEnvironment(ctx context.Context, env function.Env) (map[string]string, error) {
	out := make(map[string]string, len(env))
	for key, value := range env {
		resolved, err := value.Await(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		out[key] = resolved
	}
	return out, nil
}

// resolveVpcConfig awaits the network attachment values when the spec
// carries them. A spec without network attachment returns nil.
func resolveVpcConfig(ctx context.Context, spec *function.Spec) (*lambdatypes.VpcConfig, error) {
	subnets, err := spec.SubnetIDs.Await(ctx)
	if err != nil {
		if errors.Is(err, async.ErrUnresolvable) {
			return nil, nil
		}
		return nil, err
	}

	groupID, err := spec.SecurityGroupID.Await(ctx)
	if err != nil {
		if errors.Is(err, async.ErrUnresolvable) {
			return nil, nil
		}
		return nil, err
	}

	return &lambdatypes.VpcConfig{
		SubnetIds:        subnets,
		SecurityGroupIds: []string{groupID},
	}, nil
}

func (e *AWSEngine) CreateHTTPEndpoint(ctx context.Context, fn *composer.FunctionHandle) (async.Value[string], error) {
	url, resolve, reject := async.New[string]()

	go func() {
		if _, err := fn.Ref.Await(ctx); err != nil {
			reject(err)
			return
		}

		out, err := e.lambda.CreateFunctionUrlConfig(ctx, &lambda.CreateFunctionUrlConfigInput{
			FunctionName: aws.String(fn.Spec.Name),
			AuthType:     lambdatypes.FunctionUrlAuthTypeNone,
		})
		if err != nil {
			reject(fmt.Errorf("create function url for %q: %w", fn.Spec.Name, err))
			return
		}
		e.logger.Info("function url created", "function", fn.Spec.Name)
		resolve(aws.ToString(out.FunctionUrl))
	}()

	return url, nil
}

// =============================================================================
// Schedules
// =============================================================================

func (e *AWSEngine) CreateSchedule(ctx context.Context, trg trigger.Trigger) (async.Value[string], error) {
	ref, resolve, reject := async.New[string]()

	go func() {
		targetARN, err := trg.Target.Await(ctx)
		if err != nil {
			reject(fmt.Errorf("schedule %q target: %w", trg.Name, err))
			return
		}

		// The scheduler invokes the target with the execution role named
		// on the trigger.
		roleRef, ok := e.roleRefs[trg.RoleName]
		if !ok {
			reject(fmt.Errorf("schedule %q: unknown role %q", trg.Name, trg.RoleName))
			return
		}
		roleARN, err := roleRef.Await(ctx)
		if err != nil {
			reject(fmt.Errorf("schedule %q role %q: %w", trg.Name, trg.RoleName, err))
			return
		}

		out, err := e.sched.CreateSchedule(ctx, &scheduler.CreateScheduleInput{
			Name:               aws.String(trg.Name),
			ScheduleExpression: aws.String(trg.Rate),
			FlexibleTimeWindow: &schedulertypes.FlexibleTimeWindow{
				Mode: schedulertypes.FlexibleTimeWindowModeOff,
			},
			Target: &schedulertypes.Target{
				Arn:     aws.String(targetARN),
				RoleArn: aws.String(roleARN),
				Input:   aws.String(trg.Payload),
			},
		})
		if err != nil {
			reject(fmt.Errorf("create schedule %q: %w", trg.Name, err))
			return
		}
		e.logger.Info("schedule created", "schedule", trg.Name, "rate", trg.Rate)
		resolve(aws.ToString(out.ScheduleArn))
	}()

	return ref, nil
}
